// Package netprobe tracks which pids have dropped out of the task-iterator
// output so their shared network-counter table entries can be reclaimed
// once they have been absent for enough consecutive ticks (spec §3
// "Network counter entry ... reclaimed when the aggregator reports the
// process as gone for two consecutive snapshots").
package netprobe

const defaultAbsenceThreshold = 2

// Tracker counts, per pid, how many consecutive ticks it has been absent
// from the current record set. It does not touch the underlying counter
// table itself; callers pass the pids Observe reports back to whatever
// reclaims the entry (internal/sampler/core.Loader.DeleteNetCounter).
type Tracker struct {
	threshold int
	absences  map[uint32]int
}

// New returns a Tracker using the spec's default two-tick absence threshold.
func New() *Tracker {
	return &Tracker{threshold: defaultAbsenceThreshold, absences: make(map[uint32]int)}
}

// WithThreshold overrides the default absence threshold; used by tests that
// want to parameterize over N the way the classifier cache eviction does.
func (t *Tracker) WithThreshold(n int) *Tracker {
	return &Tracker{threshold: n, absences: t.absences}
}

// Observe is called once per tick with the set of pids the current task
// record sequence reported as live. It returns the pids that have now
// crossed the absence threshold and should have their counter-table entry
// deleted; those pids stop being tracked once returned.
func (t *Tracker) Observe(livePIDs map[uint32]struct{}) []uint32 {
	var reclaimed []uint32

	for pid := range t.absences {
		if _, live := livePIDs[pid]; live {
			t.absences[pid] = 0
			continue
		}
		t.absences[pid]++
		if t.absences[pid] >= t.threshold {
			reclaimed = append(reclaimed, pid)
			delete(t.absences, pid)
		}
	}

	return reclaimed
}

// Track registers pid as currently known to have a live counter-table
// entry; called the first time a pid is observed with a network counter so
// its eventual absence is tracked from zero rather than starting mid-count.
func (t *Tracker) Track(pid uint32) {
	if _, ok := t.absences[pid]; !ok {
		t.absences[pid] = 0
	}
}
