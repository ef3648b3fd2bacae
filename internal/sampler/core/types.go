package core

import "time"

// Config holds the configuration for the kernel-side sampler and its
// network probes (spec §4.A–§4.C).
type Config struct {
	// TickInterval is the sampler loop's period (spec §4.I, default 1s).
	TickInterval time.Duration `json:"tick_interval"`

	// IterationDeadline bounds one iteration pull; on expiry the partial
	// sequence collected so far is returned (spec §4.C).
	IterationDeadline time.Duration `json:"iteration_deadline"`

	// EnableNetworkProbes toggles the four socket send/recv attach points
	// (spec §4.B). Can be flipped at runtime without restarting the sampler.
	EnableNetworkProbes bool `json:"enable_network_probes"`

	// NetCounterTableSize bounds the shared per-pid network counter table;
	// on overflow the least-recently-updated entry is evicted (spec §4.B).
	NetCounterTableSize uint32 `json:"net_counter_table_size"`

	// MaxRecordsPerPull is validated as a positive record count. The Linux
	// loader's Pull does not read it: a pull drains every record regardless.
	MaxRecordsPerPull int `json:"max_records_per_pull"`
}

// Validate checks the configuration, mirroring the field/value/message
// shape of ValidationError used across the sampler packages.
func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return ValidationError{Field: "tick_interval", Value: c.TickInterval, Message: "must be positive"}
	}
	if c.IterationDeadline <= 0 || c.IterationDeadline > c.TickInterval {
		return ValidationError{Field: "iteration_deadline", Value: c.IterationDeadline, Message: "must be positive and not exceed tick_interval"}
	}
	if c.NetCounterTableSize == 0 {
		return ValidationError{Field: "net_counter_table_size", Value: c.NetCounterTableSize, Message: "must be greater than zero"}
	}
	if c.MaxRecordsPerPull <= 0 {
		return ValidationError{Field: "max_records_per_pull", Value: c.MaxRecordsPerPull, Message: "must be greater than zero"}
	}
	return nil
}

// DefaultConfig matches the spec's stated defaults (§4.I tick interval,
// a generous per-pid table and per-pull cap).
func DefaultConfig() Config {
	return Config{
		TickInterval:        time.Second,
		IterationDeadline:   time.Second,
		EnableNetworkProbes: true,
		NetCounterTableSize: 16384,
		MaxRecordsPerPull:   8192,
	}
}

// RawRecord is the decoded, little-endian wire record as read back from the
// iteration output stream, before the aggregator turns it into a
// domain.TaskRecord. Kept separate from domain.TaskRecord so the decode step
// (internal/sampler/linux) is the only place that knows the wire layout.
type RawRecord struct {
	PID, TGID, PPID   uint32
	UID, EUID         uint32
	StartTicks        uint64
	UserTicks         uint64
	SystemTicks       uint64
	RSSPages          uint64
	VSizePages        uint64
	MinorFaults       uint64
	MajorFaults       uint64
	NumThreads        int32
	Nice              int8
	Policy            uint8
	CgroupID          uint64
	Comm              [16]byte
	Cmdline           [256]byte
	State             byte
	VoluntaryCtxSwitches   uint64
	InvoluntaryCtxSwitches uint64
	BlockIOReadBytes  uint64
	BlockIOWriteBytes uint64
	Flags             uint32
}

// PullResult is what one Loader.Pull call returns to the aggregator: the
// records drained this tick, plus whether the pull hit its deadline before
// draining everything (spec §4.C "partial flag").
type PullResult struct {
	Records []RawRecord
	Partial bool
}

// NetCounterEntry is one row of the shared, kernel-maintained byte counter
// table, keyed by pid (spec §3 "Network counter entry").
type NetCounterEntry struct {
	PID           uint32
	BytesSent     uint64
	BytesReceived uint64
}
