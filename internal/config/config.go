// Package config binds the command-line surface (spec §6) to a Config the
// rest of the program consumes, the way the teacher repo's cmd/* binaries
// layer cobra flags over viper defaults.
package config

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/DieracDelta/bpftop/internal/sampler/core"
)

// Config is the fully-resolved runtime configuration for one cgtop process.
type Config struct {
	Sampler core.Config

	// TreeMode starts the UI collaborator in tree-grouping mode (-t).
	TreeMode bool

	// UserFilter restricts the displayed process set to one username (-u);
	// empty means no filter. The core does not interpret it, it only carries
	// the value through to the UI collaborator.
	UserFilter string

	LogLevel string
}

const (
	keyTickIntervalMS = "tick_interval_ms"
	keyTreeMode       = "tree_mode"
	keyUserFilter     = "user_filter"
	keyLogLevel       = "log_level"
	keyNetworkProbes  = "network_probes_enabled"
)

// BindFlags registers the spec's command-line surface on cmd and binds each
// flag into viper under its config key, mirroring the bind-then-read pattern
// used throughout the teacher's cmd/ binaries.
func BindFlags(cmd *cobra.Command, v *viper.Viper) {
	v.SetDefault(keyTickIntervalMS, int(core.DefaultConfig().TickInterval/time.Millisecond))
	v.SetDefault(keyTreeMode, false)
	v.SetDefault(keyUserFilter, "")
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyNetworkProbes, true)

	flags := cmd.Flags()
	flags.IntP("delay", "d", v.GetInt(keyTickIntervalMS), "sampling tick interval, in milliseconds")
	flags.BoolP("tree", "t", v.GetBool(keyTreeMode), "start in tree grouping mode")
	flags.StringP("user", "u", v.GetString(keyUserFilter), "restrict display to this username")
	flags.String("log-level", v.GetString(keyLogLevel), "log level (debug, info, warn, error)")
	flags.Bool("network-probes", v.GetBool(keyNetworkProbes), "attach the socket send/recv byte counters")

	_ = v.BindPFlag(keyTickIntervalMS, flags.Lookup("delay"))
	_ = v.BindPFlag(keyTreeMode, flags.Lookup("tree"))
	_ = v.BindPFlag(keyUserFilter, flags.Lookup("user"))
	_ = v.BindPFlag(keyLogLevel, flags.Lookup("log-level"))
	_ = v.BindPFlag(keyNetworkProbes, flags.Lookup("network-probes"))

	v.SetEnvPrefix("CGTOP")
	v.AutomaticEnv()
}

// Load resolves the bound viper values into a Config, applying
// core.Config's own defaults for everything the command line does not
// expose (table size, per-pull cap). The iteration deadline is set equal to
// the tick interval.
func Load(v *viper.Viper) Config {
	sampler := core.DefaultConfig()
	sampler.TickInterval = time.Duration(v.GetInt(keyTickIntervalMS)) * time.Millisecond
	sampler.IterationDeadline = sampler.TickInterval
	sampler.EnableNetworkProbes = v.GetBool(keyNetworkProbes)

	return Config{
		Sampler:    sampler,
		TreeMode:   v.GetBool(keyTreeMode),
		UserFilter: v.GetString(keyUserFilter),
		LogLevel:   v.GetString(keyLogLevel),
	}
}
