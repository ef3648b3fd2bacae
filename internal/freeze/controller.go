//go:build linux

// Package freeze drives the cgroup-v2 freeze state machine over a subtree
// and reports progress (spec §4.H). It runs independently of the sampler
// loop: a freeze transition's poll wait must never block a tick.
package freeze

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/DieracDelta/bpftop/internal/domain"
)

const (
	// DefaultDeadline bounds how long a freeze/thaw transition polls for
	// settlement before reporting timeout.
	DefaultDeadline = 5 * time.Second

	pollInterval = 20 * time.Millisecond
)

// Controller performs freeze/thaw transitions and status reads against
// cgroup-v2 subtrees. Zero value is not usable; construct with New.
type Controller struct {
	logger   *zap.Logger
	deadline time.Duration

	tracer      trace.Tracer
	transitions metric.Int64Counter

	ops *operationTracker
}

// operationTracker holds the in-flight and last-completed freeze operation
// per cgroup root (spec §3 "Freeze operation state"). It is shared across
// Controllers returned by WithDeadline, which represent the same logical
// controller at a different polling deadline.
type operationTracker struct {
	mu         sync.Mutex
	operations map[string]*domain.FreezeOperation
}

// New returns a Controller with the default 5s polling deadline.
func New(logger *zap.Logger) *Controller {
	meter := otel.Meter("freeze-controller")
	transitions, err := meter.Int64Counter(
		"freeze_transitions_total",
		metric.WithDescription("Freeze/thaw transitions by outcome"),
	)
	if err != nil {
		logger.Warn("failed to create freeze transitions counter", zap.Error(err))
	}

	return &Controller{
		logger:      logger,
		deadline:    DefaultDeadline,
		tracer:      otel.Tracer("freeze-controller"),
		transitions: transitions,
		ops:         &operationTracker{operations: make(map[string]*domain.FreezeOperation)},
	}
}

// WithDeadline returns a copy of the controller using a different polling
// deadline; useful for tests that want a tighter bound than the default.
func (c *Controller) WithDeadline(d time.Duration) *Controller {
	return &Controller{logger: c.logger, deadline: d, tracer: c.tracer, transitions: c.transitions, ops: c.ops}
}

// Operation returns the in-flight or last-completed freeze/thaw operation
// recorded against cgroupRoot, and whether one has ever been observed.
func (c *Controller) Operation(cgroupRoot string) (domain.FreezeOperation, bool) {
	c.ops.mu.Lock()
	defer c.ops.mu.Unlock()
	op, ok := c.ops.operations[cgroupRoot]
	if !ok {
		return domain.FreezeOperation{}, false
	}
	return *op, true
}

// Progress returns the renderer-facing progress view of the operation
// recorded against cgroupRoot (spec §6 "Freeze interface exposed to the UI
// collaborator"), and whether one has ever been observed.
func (c *Controller) Progress(cgroupRoot string) (domain.Progress, bool) {
	c.ops.mu.Lock()
	defer c.ops.mu.Unlock()
	op, ok := c.ops.operations[cgroupRoot]
	if !ok {
		return domain.Progress{}, false
	}
	return domain.Progress{
		Elapsed:  op.LastPolledAt.Sub(op.StartedAt),
		Deadline: c.deadline,
		Observed: op.Observed,
		Done:     op.Outcome != "",
	}, true
}

// Freeze writes the frozen request to cgroup_root/cgroup.freeze and polls
// cgroup.events until the frozen field reads 1 or the deadline expires.
// Freezing an already-frozen subtree is a no-op that reports success
// immediately (spec §4.H "idempotent").
func (c *Controller) Freeze(ctx context.Context, cgroupRoot string) domain.FreezeOutcome {
	return c.transition(ctx, cgroupRoot, domain.RequestFreeze)
}

// Thaw writes the thawed request and polls until settled. instant has no
// effect on the kernel write (cgroup v2 exposes no "instant thaw" knob) and
// exists only so the caller's request shape matches freeze's; it is kept
// for symmetry with the interface this controller exposes to callers.
func (c *Controller) Thaw(ctx context.Context, cgroupRoot string, instant bool) domain.FreezeOutcome {
	return c.transition(ctx, cgroupRoot, domain.RequestThaw)
}

func (c *Controller) transition(ctx context.Context, cgroupRoot string, desired domain.FreezeRequest) domain.FreezeOutcome {
	writeValue, want := "1", domain.FreezeFrozen
	if desired == domain.RequestThaw {
		writeValue, want = "0", domain.FreezeThawed
	}

	ctx, span := c.tracer.Start(ctx, "freeze.transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("cgroup_root", cgroupRoot),
		attribute.String("want", string(want)),
	)

	now := time.Now()
	op := &domain.FreezeOperation{CgroupRoot: cgroupRoot, Desired: desired, StartedAt: now, LastPolledAt: now}
	c.ops.mu.Lock()
	c.ops.operations[cgroupRoot] = op
	c.ops.mu.Unlock()

	outcome := c.runTransition(ctx, cgroupRoot, writeValue, want, op)

	c.ops.mu.Lock()
	op.Outcome = outcome
	op.LastPolledAt = time.Now()
	c.ops.mu.Unlock()

	span.SetAttributes(attribute.String("outcome", string(outcome)))
	if c.transitions != nil {
		c.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))
	}
	return outcome
}

func (c *Controller) runTransition(ctx context.Context, cgroupRoot, writeValue string, want domain.FreezeState, op *domain.FreezeOperation) domain.FreezeOutcome {
	current, err := c.readRawStatus(cgroupRoot)
	if err != nil {
		return classifyError(err)
	}
	c.recordPoll(op, current)
	if current == want {
		return domain.FreezeSuccess
	}

	freezePath := cgroupRoot + "/cgroup.freeze"
	if err := os.WriteFile(freezePath, []byte(writeValue), 0644); err != nil {
		return classifyError(err)
	}

	deadline := time.Now().Add(c.deadline)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return domain.FreezePending
		case <-ticker.C:
			state, err := c.readRawStatus(cgroupRoot)
			if err != nil {
				return classifyError(err)
			}
			c.recordPoll(op, state)
			if state == want {
				return domain.FreezeSuccess
			}
			if time.Now().After(deadline) {
				return domain.FreezeTimeout
			}
		}
	}
}

func (c *Controller) recordPoll(op *domain.FreezeOperation, observed domain.FreezeState) {
	c.ops.mu.Lock()
	op.Observed = observed
	op.LastPolledAt = time.Now()
	c.ops.mu.Unlock()
}

// Status reads cgroup_root/cgroup.events and returns the observed freeze
// state (spec §4.H: thawed, freezing, frozen, thawing). cgroup.events only
// ever exposes the settled boolean, so the freezing/thawing transitional
// states are not readable from the kernel directly; Status layers them in
// from this controller's own in-flight operation bookkeeping (see
// transition/Operation) whenever a transition toward the opposite state is
// still unsettled for cgroupRoot.
func (c *Controller) Status(cgroupRoot string) (domain.FreezeState, error) {
	raw, err := c.readRawStatus(cgroupRoot)
	if err != nil {
		return domain.FreezeUnknown, err
	}

	c.ops.mu.Lock()
	op, inFlight := c.ops.operations[cgroupRoot]
	var desired domain.FreezeRequest
	if inFlight {
		inFlight = op.Outcome == ""
		desired = op.Desired
	}
	c.ops.mu.Unlock()

	if inFlight {
		switch desired {
		case domain.RequestFreeze:
			if raw != domain.FreezeFrozen {
				return domain.FreezeFreezing, nil
			}
		case domain.RequestThaw:
			if raw != domain.FreezeThawed {
				return domain.FreezeThawing, nil
			}
		}
	}
	return raw, nil
}

// readRawStatus reads cgroup_root/cgroup.events directly, returning only
// the kernel-settled states {thawed, frozen}; Status wraps it with
// operation-aware transitional reporting.
func (c *Controller) readRawStatus(cgroupRoot string) (domain.FreezeState, error) {
	eventsPath := cgroupRoot + "/cgroup.events"
	f, err := os.Open(eventsPath)
	if err != nil {
		return domain.FreezeUnknown, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		fields := strings.Fields(line)
		if len(fields) != 2 || fields[0] != "frozen" {
			continue
		}
		if fields[1] == "1" {
			return domain.FreezeFrozen, nil
		}
		return domain.FreezeThawed, nil
	}
	if err := sc.Err(); err != nil {
		return domain.FreezeUnknown, err
	}
	return domain.FreezeUnknown, fmt.Errorf("%s: no frozen field", eventsPath)
}

func classifyError(err error) domain.FreezeOutcome {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return domain.FreezeVanished
	case errors.Is(err, os.ErrPermission):
		return domain.FreezeDenied
	default:
		return domain.FreezeTimeout
	}
}
