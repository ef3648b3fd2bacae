package domain

import "time"

// FreezeOutcome is the result of a freeze or thaw request (spec §4.H, §7
// kind 5). It is a closed enum returned to the caller, never an error: a
// freeze operation failing to reach the desired state is an expected,
// reportable outcome, not an exceptional one.
type FreezeOutcome string

const (
	FreezePending FreezeOutcome = "pending"
	FreezeSuccess FreezeOutcome = "success"
	FreezeTimeout FreezeOutcome = "timeout"
	FreezeDenied  FreezeOutcome = "denied"
	FreezeVanished FreezeOutcome = "vanished"
)

// FreezeRequest is the desired end state for a subtree transition.
type FreezeRequest string

const (
	RequestFreeze FreezeRequest = "freeze"
	RequestThaw   FreezeRequest = "thaw"
)

// FreezeOperation tracks one in-flight or completed freeze/thaw transition
// over a cgroup subtree (spec §3 "Freeze operation state").
type FreezeOperation struct {
	CgroupRoot string
	Desired    FreezeRequest
	Observed   FreezeState

	StartedAt    time.Time
	LastPolledAt time.Time

	Outcome FreezeOutcome
}

// Progress is the renderer-facing view of an in-flight freeze operation:
// how far through its polling deadline it is and what state has been
// observed so far. It carries no UI logic, only the values a progress bar
// would need (spec §6 "Freeze interface exposed to the UI collaborator").
type Progress struct {
	Elapsed  time.Duration
	Deadline time.Duration
	Observed FreezeState
	Done     bool
}
