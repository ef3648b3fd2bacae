//go:build !linux

// Package stub provides a Loader that returns errUnsupportedPlatform on any
// platform without the in-kernel sampler (spec §7 kind 1 "setup-fatal"),
// matching the linux/stub split used throughout pkg/collectors in the
// teacher repo for platform-specific collectors.
package stub

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/DieracDelta/bpftop/internal/sampler/core"
)

var errUnsupportedPlatform = errors.New("kernel-side sampler is only supported on linux")

type loader struct{}

// New returns a Loader stub for non-Linux builds.
func New(_ *zap.Logger) core.Loader { return &loader{} }

func (l *loader) Load(ctx context.Context, cfg core.Config) (core.ProbeStatus, error) {
	return core.ProbeStatus{}, errUnsupportedPlatform
}

func (l *loader) Pull(ctx context.Context) (core.PullResult, error) {
	return core.PullResult{}, errUnsupportedPlatform
}

func (l *loader) SetNetworkProbesEnabled(ctx context.Context, enabled bool) error {
	return errUnsupportedPlatform
}

func (l *loader) ReadNetCounters() ([]core.NetCounterEntry, error) {
	return nil, errUnsupportedPlatform
}

func (l *loader) DeleteNetCounter(pid uint32) error {
	return errUnsupportedPlatform
}

func (l *loader) Close() error { return nil }
