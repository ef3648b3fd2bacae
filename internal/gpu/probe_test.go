package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

// TestNewDegradesWithoutDriver exercises the expected path in any
// environment without an NVIDIA driver present (including CI): New must
// not panic or block, and the resulting probe reports disabled.
func TestNewDegradesWithoutDriver(t *testing.T) {
	logger := zaptest.NewLogger(t)
	p := New(logger)

	assert.NotNil(t, p)
	if p.Enabled() {
		t.Skip("NVIDIA driver present in this environment; disabled-path assertions not applicable")
	}

	assert.Nil(t, p.Sample())
	assert.NoError(t, p.Close())
}
