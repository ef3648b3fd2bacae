package core

import "context"

// Loader owns the lifecycle of the compiled kernel-side sampler program and
// its network probes: load once, pull once per tick, close in reverse
// acquisition order (spec §4.C, §4.I, §5 "Resource lifecycle").
type Loader interface {
	// Load attaches the task-iterator program and, if cfg enables them, the
	// four network probe attach points. Probe attach failures are reported
	// through the returned ProbeStatus rather than failing Load (spec §4.C
	// "Failures in attaching any probe ... do not prevent the sampler from
	// running").
	Load(ctx context.Context, cfg Config) (ProbeStatus, error)

	// Pull drains one iteration pass, bounded by cfg.IterationDeadline.
	Pull(ctx context.Context) (PullResult, error)

	// SetNetworkProbesEnabled attaches or detaches the network probes at
	// runtime without affecting the task-iterator program (spec §4.B
	// "Toggleable").
	SetNetworkProbesEnabled(ctx context.Context, enabled bool) error

	// ReadNetCounters returns a snapshot of the shared per-pid counter
	// table as it stands right now.
	ReadNetCounters() ([]NetCounterEntry, error)

	// DeleteNetCounter reclaims pid's entry from the shared counter table.
	// Called by the caller's own reclamation policy once a pid has been
	// absent from the task-iterator output for enough consecutive ticks
	// (spec §3 "Network counter entry ... reclaimed when the aggregator
	// reports the process as gone for two consecutive snapshots").
	DeleteNetCounter(pid uint32) error

	// Close releases program, map, and probe handles in reverse order of
	// acquisition.
	Close() error
}

// ProbeStatus reports which network probe attach points succeeded, so the
// caller can latch a component-disabling warning without failing sampler
// startup (spec §7 kind 2).
type ProbeStatus struct {
	TCPSendAttached bool
	TCPRecvAttached bool
	UDPSendAttached bool
	UDPRecvAttached bool
	Errors          []error
}

// AnyAttached reports whether at least one probe attach point is live.
func (s ProbeStatus) AnyAttached() bool {
	return s.TCPSendAttached || s.TCPRecvAttached || s.UDPSendAttached || s.UDPRecvAttached
}
