//go:build linux

// Command cgtop drives the sampling-and-classification pipeline and the
// freeze controller; the terminal rendering, input handling, and sort/filter
// state are out of the core's scope (spec §1) and are represented here only
// by a minimal console reporter that stands in for the UI collaborator.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/DieracDelta/bpftop/internal/aggregator"
	"github.com/DieracDelta/bpftop/internal/classifier"
	"github.com/DieracDelta/bpftop/internal/config"
	"github.com/DieracDelta/bpftop/internal/domain"
	"github.com/DieracDelta/bpftop/internal/freeze"
	"github.com/DieracDelta/bpftop/internal/gpu"
	"github.com/DieracDelta/bpftop/internal/procscraper"
	"github.com/DieracDelta/bpftop/internal/sampler"
	"github.com/DieracDelta/bpftop/internal/sampler/core"
	"github.com/DieracDelta/bpftop/internal/samplerloop"
)

const (
	exitNormal            = 0
	exitKernelLoadFailure = 1
	exitMissingCapability = 2
)

func main() {
	v := viper.New()
	var exitCode int

	rootCmd := &cobra.Command{
		Use:           "cgtop",
		Short:         "Interactive Linux process monitor backed by an in-kernel task sampler",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := run(cmd.Context(), config.Load(v))
			exitCode = code
			return err
		},
	}
	config.BindFlags(rootCmd, v)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	rootCmd.SetContext(ctx)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "cgtop:", err)
		if exitCode == exitNormal {
			exitCode = exitKernelLoadFailure
		}
		os.Exit(exitCode)
	}
	os.Exit(exitCode)
}

func run(ctx context.Context, cfg config.Config) (int, error) {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return exitKernelLoadFailure, fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	resolver, err := classifier.NewResolver()
	if err != nil {
		logger.Error("cgroup v2 hierarchy not available", zap.Error(err))
		return exitKernelLoadFailure, err
	}

	gpuProbe := gpu.New(logger)
	defer gpuProbe.Close()

	freezeCtl := freeze.New(logger)
	agg := aggregator.New(logger, resolver, gpuProbe, freezeCtl)
	scraper := procscraper.New()
	loader := sampler.NewLoader(logger)

	loop := samplerloop.New(logger, loader, scraper, agg, cfg.Sampler)
	loop.OnNewSnapshot(func(snap *domain.Snapshot) {
		reportSnapshot(logger, snap, cfg)
	})

	logger.Info("cgtop starting",
		zap.Duration("tick_interval", cfg.Sampler.TickInterval),
		zap.Bool("tree_mode", cfg.TreeMode),
		zap.String("user_filter", cfg.UserFilter),
	)

	if err := loop.Run(ctx); err != nil {
		if errors.Is(err, core.ErrInsufficientPrivileges) {
			logger.Error("missing required capability", zap.Error(err))
			return exitMissingCapability, err
		}
		logger.Error("kernel-program load failure", zap.Error(err))
		return exitKernelLoadFailure, err
	}

	return exitNormal, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	var lvl zapcore.Level
	if err := lvl.Set(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}

// reportSnapshot stands in for the UI collaborator's subscription callback
// (spec §6 "on_new_snapshot"); it is not part of the core and exists only so
// this binary does something observable without a terminal renderer wired in.
func reportSnapshot(logger *zap.Logger, snap *domain.Snapshot, cfg config.Config) {
	logger.Info("snapshot published",
		zap.Uint64("generation", snap.Generation),
		zap.Int("processes", len(snap.Processes)),
		zap.Bool("partial", snap.Partial),
		zap.Uint64("missed_ticks", snap.MissedTicks),
	)
}
