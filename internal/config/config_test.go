package config

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBoundCommand() (*cobra.Command, *viper.Viper) {
	cmd := &cobra.Command{Use: "cgtop"}
	v := viper.New()
	BindFlags(cmd, v)
	return cmd, v
}

func TestLoadAppliesDefaultsWithNoFlags(t *testing.T) {
	_, v := newBoundCommand()

	cfg := Load(v)

	assert.Equal(t, int64(1_000_000_000), cfg.Sampler.TickInterval.Nanoseconds())
	assert.Equal(t, cfg.Sampler.TickInterval, cfg.Sampler.IterationDeadline)
	assert.False(t, cfg.TreeMode)
	assert.Empty(t, cfg.UserFilter)
	assert.True(t, cfg.Sampler.EnableNetworkProbes)
	require.NoError(t, cfg.Sampler.Validate())
}

func TestLoadReflectsParsedFlags(t *testing.T) {
	cmd, v := newBoundCommand()
	require.NoError(t, cmd.Flags().Parse([]string{"-d", "250", "-t", "-u", "alice", "--network-probes=false"}))

	cfg := Load(v)

	assert.Equal(t, int64(250_000_000), cfg.Sampler.TickInterval.Nanoseconds())
	assert.True(t, cfg.TreeMode)
	assert.Equal(t, "alice", cfg.UserFilter)
	assert.False(t, cfg.Sampler.EnableNetworkProbes)
}

func TestIterationDeadlineNeverExceedsTickInterval(t *testing.T) {
	cmd, v := newBoundCommand()
	require.NoError(t, cmd.Flags().Parse([]string{"-d", "10"}))

	cfg := Load(v)

	require.NoError(t, cfg.Sampler.Validate())
	assert.LessOrEqual(t, cfg.Sampler.IterationDeadline, cfg.Sampler.TickInterval)
}
