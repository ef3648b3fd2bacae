package netprobe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func live(pids ...uint32) map[uint32]struct{} {
	m := make(map[uint32]struct{}, len(pids))
	for _, p := range pids {
		m[p] = struct{}{}
	}
	return m
}

func TestTrackerReclaimsAfterTwoAbsences(t *testing.T) {
	tr := New()
	tr.Track(100)

	assert.Empty(t, tr.Observe(live(100)), "still live, not reclaimed")
	assert.Empty(t, tr.Observe(live()), "first absence, not yet reclaimed")
	assert.Equal(t, []uint32{100}, tr.Observe(live()), "second consecutive absence reclaims")
}

func TestTrackerResetsOnReappearance(t *testing.T) {
	tr := New()
	tr.Track(100)

	assert.Empty(t, tr.Observe(live()))       // absence 1
	assert.Empty(t, tr.Observe(live(100)))    // reappears, resets to 0
	assert.Empty(t, tr.Observe(live()))       // absence 1 again
	assert.Empty(t, tr.Observe(live(100)))    // reappears again
}

func TestTrackerUntrackedPidsAreIgnored(t *testing.T) {
	tr := New()
	// pid 42 never had a network counter entry, so it was never Track()-ed;
	// its absence should never produce a reclaim.
	assert.Empty(t, tr.Observe(live()))
	assert.Empty(t, tr.Observe(live()))
}

func TestTrackerCustomThreshold(t *testing.T) {
	tr := New().WithThreshold(3)
	tr.Track(7)

	assert.Empty(t, tr.Observe(live()))
	assert.Empty(t, tr.Observe(live()))
	assert.Equal(t, []uint32{7}, tr.Observe(live()))
}
