//go:build !linux

package sampler

import (
	"go.uber.org/zap"

	"github.com/DieracDelta/bpftop/internal/sampler/core"
	"github.com/DieracDelta/bpftop/internal/sampler/stub"
)

// NewLoader returns a Loader appropriate for the current platform.
func NewLoader(logger *zap.Logger) core.Loader {
	return stub.New(logger)
}
