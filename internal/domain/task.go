// Package domain holds the wire and in-memory data model shared between the
// kernel-side sampler, the aggregator, and any consumer of a published
// snapshot.
package domain

import "time"

// SchedPolicy mirrors the small set of Linux scheduling policies the sampler
// reports; it is not exhaustive of every SCHED_* value the kernel accepts.
type SchedPolicy uint8

const (
	SchedNormal SchedPolicy = iota
	SchedFIFO
	SchedRR
	SchedBatch
	SchedIdle
	SchedDeadline
	SchedOther
)

// TaskState is the single-character /proc-style task state code.
type TaskState byte

const (
	TaskRunning       TaskState = 'R'
	TaskSleeping      TaskState = 'S'
	TaskDiskSleep     TaskState = 'D'
	TaskZombie        TaskState = 'Z'
	TaskStopped       TaskState = 'T'
	TaskTracingStop   TaskState = 't'
	TaskDead          TaskState = 'X'
	TaskUnknownState  TaskState = '?'
)

// RecordFlags carries the per-record trouble bits the sampler can raise
// when a safe-read of guest kernel memory fails for one field. Bits are
// independent so several fields can be simultaneously flagged.
type RecordFlags uint32

const (
	FlagRSSUnknown RecordFlags = 1 << iota
	FlagVSizeUnknown
	FlagIOUnknown
	FlagCgroupUnknown
	FlagCommTruncated
	FlagCmdlineTruncated
	FlagPartialRead
)

func (f RecordFlags) Has(bit RecordFlags) bool { return f&bit != 0 }

// TaskRecord is the fixed-size record the kernel-side sampler emits once per
// live task per iteration pass (spec §3, §4.A). Field order here does not
// need to match the wire layout: decoding from the wire buffer happens in
// internal/sampler/linux, which knows the little-endian struct layout the
// kernel program actually writes.
type TaskRecord struct {
	PID  uint32
	TGID uint32
	PPID uint32

	UID uint32
	EUID uint32

	StartTicks uint64 // boot-relative, in clock ticks

	UserTicks   uint64
	SystemTicks uint64

	RSSPages uint64
	VSizePages uint64

	MinorFaults uint64
	MajorFaults uint64

	NumThreads int32
	Nice       int8
	Policy     SchedPolicy

	CgroupID uint64 // opaque kernfs node id

	Comm    string // ≤16 bytes on the wire, truncated with no trailing NUL guaranteed
	Cmdline string // ≤256 bytes on the wire, same truncation rule

	State TaskState

	VoluntaryCtxSwitches   uint64
	InvoluntaryCtxSwitches uint64

	BlockIOReadBytes  uint64
	BlockIOWriteBytes uint64

	Flags RecordFlags
}

// IsThread reports whether this record belongs to a thread rather than the
// thread-group leader. The aggregator keys entries by PID and does not fold
// threads into their thread-group leader's entry.
func (t TaskRecord) IsThread() bool { return t.PID != t.TGID }

// Truncated reports whether comm or cmdline hit the wire size bound.
func (t TaskRecord) Truncated() bool {
	return t.Flags.Has(FlagCommTruncated) || t.Flags.Has(FlagCmdlineTruncated)
}

// Identity is the stable (pid, start-time) key used across snapshots to
// detect pid reuse (spec §9 "Process identity").
type Identity struct {
	PID        uint32
	StartTicks uint64
}

// NetCounters is one entry of the shared, kernel-maintained per-pid network
// byte counter table (spec §3 "Network counter entry").
type NetCounters struct {
	BytesSent     uint64
	BytesReceived uint64
}

// GPUUsage is per-process GPU utilization as reported by an optional GPU
// probe (spec §4.F).
type GPUUsage struct {
	VRAMBytes        uint64
	UtilizationPct   float64
}

// FreezeState is the observed cgroup-v2 freeze state of a process's cgroup
// root, attached to a process entry by the aggregator (spec §4.G step 6).
type FreezeState string

const (
	FreezeThawed   FreezeState = "thawed"
	FreezeFreezing FreezeState = "freezing"
	FreezeFrozen   FreezeState = "frozen"
	FreezeThawing  FreezeState = "thawing"
	FreezeUnknown  FreezeState = "unknown"
)

// Classification is the result of resolving a task's cgroup identifier to a
// service unit, a container, and the cgroup-v2 root path it lives under
// (spec §3 "Classification cache", §4.E).
type Classification struct {
	ServiceUnit string // e.g. "myapp.service", empty if none matched
	Container   string // display id/name, empty if not containerized
	CgroupRoot  string // absolute path under the cgroup v2 hierarchy root
}

// ProcessEntry is one process's worth of derived, decorated state inside a
// published snapshot (spec §3 "Process entry").
type ProcessEntry struct {
	TaskRecord

	FirstSeen bool // true when no matching (pid, start-time) existed previously

	CPUUserPct     float64
	CPUSystemPct   float64
	CPUCombinedPct float64
	MemPct         float64

	IOReadBytesPerSec  float64
	IOWriteBytesPerSec float64

	NetSendBytesPerSec float64
	NetRecvBytesPerSec float64

	Classification Classification
	Freeze         FreezeState
	GPU            *GPUUsage // nil when the GPU probe is disabled or the pid is not using the GPU
}

// Identity returns the process entry's stable cross-snapshot key.
func (p ProcessEntry) Identity() Identity {
	return Identity{PID: p.PID, StartTicks: p.StartTicks}
}

// SystemTotals is the system-wide portion of a snapshot, populated from the
// /proc scraper (spec §3 "Snapshot", §4.D).
type SystemTotals struct {
	PerCPUTicks []CPUTicks
	Aggregate   CPUTicks

	MemTotalBytes     uint64
	MemFreeBytes      uint64
	MemAvailableBytes uint64
	MemBuffersBytes   uint64
	MemCachedBytes    uint64
	SwapTotalBytes    uint64
	SwapUsedBytes     uint64

	// ZramUsedBytes approximates compressed-memory pressure using meminfo's
	// Zswap field (compressed swap cache), not the zram block device: the
	// scraper is limited to /proc/meminfo's four fixed-path reads and has no
	// figure for an actual zram device, which would require reading
	// /sys/block/zram0/mm_stat instead.
	ZramUsedBytes uint64

	Load1  float64
	Load5  float64
	Load15 float64

	UptimeSeconds float64
}

// CPUTicks is one CPU's (or the aggregate's) tick counters as reported by
// /proc/stat, in kernel-tick units.
type CPUTicks struct {
	User, Nice, System, Idle, IOWait, IRQ, SoftIRQ, Steal uint64
}

// Total sums every field of the tick vector.
func (c CPUTicks) Total() uint64 {
	return c.User + c.Nice + c.System + c.Idle + c.IOWait + c.IRQ + c.SoftIRQ + c.Steal
}

// Busy sums every non-idle field.
func (c CPUTicks) Busy() uint64 { return c.Total() - c.Idle - c.IOWait }

// Snapshot is the immutable, atomically published view produced by one
// aggregator cycle (spec §3 "Snapshot", §4.G, §5).
type Snapshot struct {
	CollectedAt time.Time
	Generation  uint64

	Processes map[uint32]ProcessEntry // keyed by pid

	Totals SystemTotals

	Partial     bool // set when the iteration pull did not drain within its deadline
	MissedTicks uint64
}

// Clone returns a snapshot with its own copy of the process map so a
// consumer can mutate it without racing the aggregator's next publish.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Processes = make(map[uint32]ProcessEntry, len(s.Processes))
	for k, v := range s.Processes {
		cp.Processes[k] = v
	}
	return &cp
}
