//go:build linux

// Package aggregator joins the kernel-sampler's task records with /proc
// totals, classification, GPU usage, and network counters into the
// immutable, generation-numbered snapshot consumers read (spec §4.G).
package aggregator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/DieracDelta/bpftop/internal/classifier"
	"github.com/DieracDelta/bpftop/internal/domain"
	"github.com/DieracDelta/bpftop/internal/freeze"
	"github.com/DieracDelta/bpftop/internal/gpu"
)

// ticksPerSecond is the kernel's USER_HZ clock rate used to convert raw CPU
// tick deltas into seconds. 100 is the default on every mainstream Linux
// distribution kernel config this sampler targets; a kernel built with a
// different CONFIG_HZ would need this overridden, which the spec's
// hard-coded-offset design already accepts as a portability non-goal.
const ticksPerSecond = 100

// pageSizeBytes is the page size used to convert RSS/vsize page counts into
// bytes. 4096 holds on amd64 and arm64, the two architectures this sampler
// ships offset tables for.
const pageSizeBytes = 4096

// Input is one tick's worth of raw collection results handed to Publish.
type Input struct {
	Records     []domain.TaskRecord
	Totals      domain.SystemTotals
	NetCounters map[uint32]domain.NetCounters
	Partial     bool
	MissedTicks uint64
}

// Aggregator owns the previous snapshot and the classification/network
// state needed to compute deltas; it is not safe for concurrent use, matching
// the cooperative single-threaded model the sampler loop runs under.
type Aggregator struct {
	logger     *zap.Logger
	classifier *classifier.Resolver
	gpuProbe   *gpu.Probe
	freezeCtl  *freeze.Controller

	tick uint64
	prev *domain.Snapshot

	prevNet map[domain.Identity]domain.NetCounters
}

// New constructs an Aggregator. gpuProbe and freezeCtl may be nil, in which
// case GPU usage is never attached and freeze state is always "unknown".
func New(logger *zap.Logger, resolver *classifier.Resolver, gpuProbe *gpu.Probe, freezeCtl *freeze.Controller) *Aggregator {
	return &Aggregator{
		logger:     logger,
		classifier: resolver,
		gpuProbe:   gpuProbe,
		freezeCtl:  freezeCtl,
		prevNet:    make(map[domain.Identity]domain.NetCounters),
	}
}

// Publish builds and returns the next snapshot, advancing internal state
// (tick counter, retained previous snapshot, retained network counters) so
// the following call computes deltas against this one.
func (a *Aggregator) Publish(ctx context.Context, in Input) *domain.Snapshot {
	now := time.Now()
	a.tick++

	processes := make(map[uint32]domain.ProcessEntry, len(in.Records))
	nextNet := make(map[domain.Identity]domain.NetCounters, len(in.NetCounters))
	freezeCache := make(map[string]domain.FreezeState)

	var deltaWall float64
	if a.prev != nil {
		deltaWall = now.Sub(a.prev.CollectedAt).Seconds()
	}

	var gpuUsage map[uint32]domain.GPUUsage
	if a.gpuProbe != nil {
		gpuUsage = a.gpuProbe.Sample()
	}

	partial := in.Partial
	for _, rec := range in.Records {
		if ctx.Err() != nil {
			partial = true
			break
		}

		entry := domain.ProcessEntry{TaskRecord: rec}
		identity := entry.Identity()

		prevEntry, hadPrev := a.lookupPrevious(rec.PID, identity)
		if hadPrev && deltaWall > 0 {
			entry.FirstSeen = false
			entry.CPUUserPct = tickRate(rec.UserTicks, prevEntry.UserTicks, deltaWall)
			entry.CPUSystemPct = tickRate(rec.SystemTicks, prevEntry.SystemTicks, deltaWall)
			entry.CPUCombinedPct = entry.CPUUserPct + entry.CPUSystemPct
			entry.IOReadBytesPerSec = byteRate(rec.BlockIOReadBytes, prevEntry.BlockIOReadBytes, deltaWall)
			entry.IOWriteBytesPerSec = byteRate(rec.BlockIOWriteBytes, prevEntry.BlockIOWriteBytes, deltaWall)
		} else {
			entry.FirstSeen = true
		}

		if in.Totals.MemTotalBytes > 0 {
			entry.MemPct = float64(rec.RSSPages*pageSizeBytes) / float64(in.Totals.MemTotalBytes) * 100
		}

		entry.Classification = a.classify(rec)
		entry.Freeze = a.freezeState(entry.Classification.CgroupRoot, freezeCache)

		if cur, ok := in.NetCounters[rec.PID]; ok {
			nextNet[identity] = cur
			if prevCur, ok := a.prevNet[identity]; ok && deltaWall > 0 {
				entry.NetSendBytesPerSec = byteRate(cur.BytesSent, prevCur.BytesSent, deltaWall)
				entry.NetRecvBytesPerSec = byteRate(cur.BytesReceived, prevCur.BytesReceived, deltaWall)
			}
		}

		if usage, ok := gpuUsage[rec.PID]; ok {
			u := usage
			entry.GPU = &u
		}

		processes[rec.PID] = entry
	}

	if a.classifier != nil {
		a.classifier.Evict(a.tick)
	}

	generation := uint64(1)
	if a.prev != nil {
		generation = a.prev.Generation + 1
	}

	snap := &domain.Snapshot{
		CollectedAt: now,
		Generation:  generation,
		Processes:   processes,
		Totals:      in.Totals,
		Partial:     partial,
		MissedTicks: in.MissedTicks,
	}

	a.prev = snap
	a.prevNet = nextNet
	return snap
}

// lookupPrevious returns the previous snapshot's entry for pid only when its
// (pid, start-time) identity matches the current record; a mismatch means
// the pid was reused and the record must be treated as first-seen.
func (a *Aggregator) lookupPrevious(pid uint32, identity domain.Identity) (domain.ProcessEntry, bool) {
	if a.prev == nil {
		return domain.ProcessEntry{}, false
	}
	prevEntry, ok := a.prev.Processes[pid]
	if !ok || prevEntry.Identity() != identity {
		return domain.ProcessEntry{}, false
	}
	return prevEntry, true
}

func (a *Aggregator) classify(rec domain.TaskRecord) domain.Classification {
	if a.classifier == nil {
		return domain.Classification{}
	}
	if cls, hit := a.classifier.Lookup(rec.CgroupID, a.tick); hit {
		return cls
	}
	path, err := classifier.ReadProcCgroupPath(rec.PID)
	if err != nil {
		return domain.Classification{CgroupRoot: a.classifier.Root()}
	}
	return a.classifier.Resolve(rec.CgroupID, path, a.tick)
}

func (a *Aggregator) freezeState(cgroupRoot string, cache map[string]domain.FreezeState) domain.FreezeState {
	if cgroupRoot == "" || a.freezeCtl == nil {
		return domain.FreezeUnknown
	}
	if state, ok := cache[cgroupRoot]; ok {
		return state
	}
	state, err := a.freezeCtl.Status(cgroupRoot)
	if err != nil {
		state = domain.FreezeUnknown
	}
	cache[cgroupRoot] = state
	return state
}

func tickRate(cur, prev uint64, deltaSeconds float64) float64 {
	if cur < prev {
		return 0
	}
	return float64(cur-prev) / ticksPerSecond / deltaSeconds * 100
}

func byteRate(cur, prev uint64, deltaSeconds float64) float64 {
	if cur < prev {
		return 0
	}
	return float64(cur-prev) / deltaSeconds
}
