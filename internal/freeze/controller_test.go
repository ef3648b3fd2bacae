//go:build linux

package freeze

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DieracDelta/bpftop/internal/domain"
)

// fakeCgroup builds a directory with cgroup.freeze and cgroup.events files
// standing in for a real cgroupfs mount, since tests don't run as root.
func fakeCgroup(t *testing.T, frozen bool) string {
	t.Helper()
	dir := t.TempDir()
	val := "0"
	if frozen {
		val = "1"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cgroup.freeze"), []byte(val), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cgroup.events"), []byte("populated 1\nfrozen "+val+"\n"), 0644))
	return dir
}

func TestStatusReadsFrozenField(t *testing.T) {
	c := New(zaptest.NewLogger(t))

	thawedDir := fakeCgroup(t, false)
	state, err := c.Status(thawedDir)
	require.NoError(t, err)
	assert.Equal(t, domain.FreezeThawed, state)

	frozenDir := fakeCgroup(t, true)
	state, err = c.Status(frozenDir)
	require.NoError(t, err)
	assert.Equal(t, domain.FreezeFrozen, state)
}

func TestStatusVanishedPath(t *testing.T) {
	c := New(zaptest.NewLogger(t))
	_, err := c.Status("/sys/fs/cgroup/definitely-not-a-real-path-for-this-test")
	assert.Error(t, err)
	assert.Equal(t, domain.FreezeVanished, classifyError(err))
}

func TestFreezeIdempotentOnAlreadyFrozen(t *testing.T) {
	c := New(zaptest.NewLogger(t))
	dir := fakeCgroup(t, true)

	outcome := c.Freeze(context.Background(), dir)
	assert.Equal(t, domain.FreezeSuccess, outcome)
}

func TestFreezeVanishedPath(t *testing.T) {
	c := New(zaptest.NewLogger(t))
	outcome := c.Freeze(context.Background(), "/sys/fs/cgroup/definitely-not-a-real-path-for-this-test")
	assert.Equal(t, domain.FreezeVanished, outcome)
}

// TestFreezeTimesOutWhenKernelNeverSettles simulates a write that never
// flips the observed state, using a deadline short enough to keep the test
// fast while still exercising the poll loop at least once.
func TestFreezeTimesOutWhenKernelNeverSettles(t *testing.T) {
	dir := fakeCgroup(t, false)
	c := New(zaptest.NewLogger(t)).WithDeadline(50 * time.Millisecond)

	outcome := c.Freeze(context.Background(), dir)
	assert.Equal(t, domain.FreezeTimeout, outcome)
}

func TestFreezeReturnsPendingOnCancellation(t *testing.T) {
	dir := fakeCgroup(t, false)
	c := New(zaptest.NewLogger(t)).WithDeadline(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := c.Freeze(ctx, dir)
	assert.Equal(t, domain.FreezePending, outcome)
}

func TestOperationRecordsOutcomeAfterCompletion(t *testing.T) {
	dir := fakeCgroup(t, true)
	c := New(zaptest.NewLogger(t))

	_, ok := c.Operation(dir)
	assert.False(t, ok, "no operation recorded before any transition runs")

	outcome := c.Freeze(context.Background(), dir)
	assert.Equal(t, domain.FreezeSuccess, outcome)

	op, ok := c.Operation(dir)
	require.True(t, ok)
	assert.Equal(t, dir, op.CgroupRoot)
	assert.Equal(t, domain.RequestFreeze, op.Desired)
	assert.Equal(t, domain.FreezeSuccess, op.Outcome)

	progress, ok := c.Progress(dir)
	require.True(t, ok)
	assert.True(t, progress.Done)
	assert.Equal(t, domain.FreezeFrozen, progress.Observed)
}

// TestStatusReportsFreezingWhileTransitionInFlight drives a freeze against a
// cgroup.events file that never flips to frozen, so the transition blocks
// for its whole deadline; a concurrent Status call must report the
// transitional "freezing" state rather than the raw, still-thawed reading.
func TestStatusReportsFreezingWhileTransitionInFlight(t *testing.T) {
	dir := fakeCgroup(t, false)
	c := New(zaptest.NewLogger(t)).WithDeadline(200 * time.Millisecond)

	done := make(chan domain.FreezeOutcome, 1)
	go func() {
		done <- c.Freeze(context.Background(), dir)
	}()

	assert.Eventually(t, func() bool {
		state, err := c.Status(dir)
		return err == nil && state == domain.FreezeFreezing
	}, 150*time.Millisecond, 5*time.Millisecond)

	op, ok := c.Operation(dir)
	require.True(t, ok)
	assert.Equal(t, domain.RequestFreeze, op.Desired)

	progress, ok := c.Progress(dir)
	require.True(t, ok)
	assert.False(t, progress.Done)
	assert.Equal(t, 200*time.Millisecond, progress.Deadline)

	outcome := <-done
	assert.Equal(t, domain.FreezeTimeout, outcome)

	state, err := c.Status(dir)
	require.NoError(t, err)
	assert.Equal(t, domain.FreezeThawed, state, "status reverts to raw state once the operation settles")
}
