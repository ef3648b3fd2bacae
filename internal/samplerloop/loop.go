//go:build linux

// Package samplerloop owns the periodic tick that drives the kernel-sampler
// pull, the /proc scrape, and the aggregator publish once per interval
// (spec §4.I). It is the only component that runs on its own goroutine;
// everything it calls runs cooperatively on that one goroutine, matching
// the single-threaded model the rest of the core assumes.
package samplerloop

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/DieracDelta/bpftop/internal/aggregator"
	"github.com/DieracDelta/bpftop/internal/domain"
	"github.com/DieracDelta/bpftop/internal/netprobe"
	"github.com/DieracDelta/bpftop/internal/procscraper"
	"github.com/DieracDelta/bpftop/internal/sampler/core"
	"github.com/DieracDelta/bpftop/internal/sampler/linux"
)

// Loop is the sampler's periodic driver. Construct with New and run with Run;
// a Loop is used once and discarded after Run returns.
type Loop struct {
	logger     *zap.Logger
	loader     core.Loader
	scraper    *procscraper.Scraper
	aggregator *aggregator.Aggregator
	netTracker *netprobe.Tracker
	cfg        core.Config

	mu          sync.RWMutex
	callbacks   []func(*domain.Snapshot)
	missedTicks uint64

	tracer      trace.Tracer
	ticksTotal  metric.Int64Counter
	missedGauge metric.Int64ObservableGauge
}

// New wires a Loop around an already-constructed Loader, Aggregator, and
// Config. The caller is responsible for the Aggregator's own collaborators
// (classifier, GPU probe, freeze controller); the Loop only sequences calls.
func New(logger *zap.Logger, loader core.Loader, scraper *procscraper.Scraper, agg *aggregator.Aggregator, cfg core.Config) *Loop {
	l := &Loop{
		logger:     logger,
		loader:     loader,
		scraper:    scraper,
		aggregator: agg,
		netTracker: netprobe.New(),
		cfg:        cfg,
		tracer:     otel.Tracer("sampler-loop"),
	}

	meter := otel.Meter("sampler-loop")
	ticksTotal, err := meter.Int64Counter(
		"sampler_ticks_total",
		metric.WithDescription("Ticks completed by the sampler loop"),
	)
	if err != nil {
		logger.Warn("failed to create ticks counter", zap.Error(err))
	}
	l.ticksTotal = ticksTotal

	missedGauge, err := meter.Int64ObservableGauge(
		"sampler_missed_ticks",
		metric.WithDescription("Ticks the sampler loop could not start on schedule"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(l.MissedTicks()))
			return nil
		}),
	)
	if err != nil {
		logger.Warn("failed to create missed ticks gauge", zap.Error(err))
	}
	l.missedGauge = missedGauge

	return l
}

// OnNewSnapshot registers a callback invoked synchronously, on the loop's
// own goroutine, after every publish (spec §6 "on_new_snapshot(callback)").
func (l *Loop) OnNewSnapshot(cb func(*domain.Snapshot)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callbacks = append(l.callbacks, cb)
}

// MissedTicks returns the number of ticks the loop was unable to start on
// schedule because the previous tick overran its interval.
func (l *Loop) MissedTicks() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.missedTicks
}

// Run loads the sampler, then drives one tick per cfg.TickInterval until ctx
// is cancelled. On return it releases the loader's handles in reverse
// acquisition order (spec §4.I, §5 "Resource lifecycle").
func (l *Loop) Run(ctx context.Context) error {
	if _, err := l.loader.Load(ctx, l.cfg); err != nil {
		return err
	}
	defer func() {
		if err := l.loader.Close(); err != nil {
			l.logger.Warn("error releasing sampler handles", zap.Error(err))
		}
	}()

	ticker := time.NewTicker(l.cfg.TickInterval)
	defer ticker.Stop()

	expected := time.Now().Add(l.cfg.TickInterval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if overrun := now.Sub(expected); overrun > 0 {
				l.recordMissedTicks(overrun)
			}
			expected = now.Add(l.cfg.TickInterval)
			l.tick(ctx)
		}
	}
}

func (l *Loop) recordMissedTicks(overrun time.Duration) {
	missed := uint64(overrun / l.cfg.TickInterval)
	if missed == 0 {
		return
	}
	l.mu.Lock()
	l.missedTicks += missed
	l.mu.Unlock()
}

func (l *Loop) tick(ctx context.Context) {
	ctx, span := l.tracer.Start(ctx, "sampler.tick")
	defer span.End()
	if l.ticksTotal != nil {
		l.ticksTotal.Add(ctx, 1)
	}

	tickCtx, cancel := context.WithTimeout(ctx, l.cfg.IterationDeadline)
	defer cancel()

	pullResult, err := l.loader.Pull(tickCtx)
	if err != nil {
		l.logger.Warn("iteration pull failed", zap.Error(err))
		pullResult.Partial = true
	}

	totals := l.scraper.Scrape()

	netEntries, err := l.loader.ReadNetCounters()
	if err != nil {
		l.logger.Warn("failed to read network counters", zap.Error(err))
	}
	netMap := make(map[uint32]domain.NetCounters, len(netEntries))
	for _, e := range netEntries {
		netMap[e.PID] = domain.NetCounters{BytesSent: e.BytesSent, BytesReceived: e.BytesReceived}
		l.netTracker.Track(e.PID)
	}

	records := make([]domain.TaskRecord, 0, len(pullResult.Records))
	live := make(map[uint32]struct{}, len(pullResult.Records))
	for _, raw := range pullResult.Records {
		rec := linux.ToTaskRecord(raw)
		records = append(records, rec)
		live[rec.PID] = struct{}{}
	}

	for _, pid := range l.netTracker.Observe(live) {
		if err := l.loader.DeleteNetCounter(pid); err != nil {
			l.logger.Debug("failed to reclaim net counter entry", zap.Uint32("pid", pid), zap.Error(err))
		}
	}

	l.mu.RLock()
	missedTicks := l.missedTicks
	l.mu.RUnlock()

	snap := l.aggregator.Publish(ctx, aggregator.Input{
		Records:     records,
		Totals:      totals,
		NetCounters: netMap,
		Partial:     pullResult.Partial,
		MissedTicks: missedTicks,
	})

	l.mu.RLock()
	callbacks := append([]func(*domain.Snapshot){}, l.callbacks...)
	l.mu.RUnlock()
	for _, cb := range callbacks {
		cb(snap)
	}
}
