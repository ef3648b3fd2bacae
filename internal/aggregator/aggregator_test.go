//go:build linux

package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/DieracDelta/bpftop/internal/domain"
)

func newTestAggregator(t *testing.T) *Aggregator {
	t.Helper()
	return New(zaptest.NewLogger(t), nil, nil, nil)
}

func TestPublishFirstTickIsFirstSeen(t *testing.T) {
	a := newTestAggregator(t)

	rec := domain.TaskRecord{PID: 100, TGID: 100, StartTicks: 500, UserTicks: 10}
	snap := a.Publish(context.Background(), Input{Records: []domain.TaskRecord{rec}})

	assert.Equal(t, uint64(1), snap.Generation)
	entry := snap.Processes[100]
	assert.True(t, entry.FirstSeen)
	assert.Equal(t, 0.0, entry.CPUUserPct)
}

func TestPublishComputesCPURateOnSecondTick(t *testing.T) {
	a := newTestAggregator(t)

	rec1 := domain.TaskRecord{PID: 100, TGID: 100, StartTicks: 500, UserTicks: 0}
	first := a.Publish(context.Background(), Input{Records: []domain.TaskRecord{rec1}})
	// back-date CollectedAt so the second publish computes a clean 1s delta.
	first.CollectedAt = first.CollectedAt.Add(-1 * time.Second)
	a.prev = first

	rec2 := domain.TaskRecord{PID: 100, TGID: 100, StartTicks: 500, UserTicks: 100}
	second := a.Publish(context.Background(), Input{Records: []domain.TaskRecord{rec2}})

	assert.Equal(t, uint64(2), second.Generation)
	entry := second.Processes[100]
	assert.False(t, entry.FirstSeen)
	assert.InDelta(t, 100.0, entry.CPUUserPct, 5.0)
}

func TestPublishTreatsPidReuseAsFirstSeen(t *testing.T) {
	a := newTestAggregator(t)

	old := domain.TaskRecord{PID: 100, TGID: 100, StartTicks: 500, UserTicks: 1000}
	first := a.Publish(context.Background(), Input{Records: []domain.TaskRecord{old}})
	first.CollectedAt = first.CollectedAt.Add(-1 * time.Second)
	a.prev = first

	reused := domain.TaskRecord{PID: 100, TGID: 100, StartTicks: 999, UserTicks: 5}
	second := a.Publish(context.Background(), Input{Records: []domain.TaskRecord{reused}})

	entry := second.Processes[100]
	assert.True(t, entry.FirstSeen)
	assert.Equal(t, 0.0, entry.CPUUserPct)
}

func TestPublishRatesNeverNegative(t *testing.T) {
	a := newTestAggregator(t)

	rec1 := domain.TaskRecord{PID: 7, TGID: 7, StartTicks: 1, UserTicks: 500, BlockIOReadBytes: 9000}
	first := a.Publish(context.Background(), Input{Records: []domain.TaskRecord{rec1}})
	first.CollectedAt = first.CollectedAt.Add(-1 * time.Second)
	a.prev = first

	// counters that appear to have gone backwards (e.g. a sampler restart)
	// must never produce a negative rate.
	rec2 := domain.TaskRecord{PID: 7, TGID: 7, StartTicks: 1, UserTicks: 100, BlockIOReadBytes: 10}
	second := a.Publish(context.Background(), Input{Records: []domain.TaskRecord{rec2}})

	entry := second.Processes[7]
	assert.GreaterOrEqual(t, entry.CPUUserPct, 0.0)
	assert.GreaterOrEqual(t, entry.IOReadBytesPerSec, 0.0)
}

func TestPublishGenerationMonotonic(t *testing.T) {
	a := newTestAggregator(t)

	var last uint64
	for i := 0; i < 5; i++ {
		snap := a.Publish(context.Background(), Input{})
		assert.Equal(t, last+1, snap.Generation)
		last = snap.Generation
	}
}

func TestPublishPartialOnCancelledContext(t *testing.T) {
	a := newTestAggregator(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := domain.TaskRecord{PID: 1, TGID: 1}
	snap := a.Publish(ctx, Input{Records: []domain.TaskRecord{rec}})
	assert.True(t, snap.Partial)
}
