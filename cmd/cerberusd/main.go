// main.go: Cerberus gateway daemon
//
// Loads the configuration document once, publishes it to the process, then
// keeps the statistics reporter running until SIGINT or SIGTERM. SIGUSR1
// requests an immediate statistics dump.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/agilira/cerberus"
	"github.com/agilira/cerberus/internal/logger"
)

const version = "1.0.0"

func main() {
	os.Exit(run())
}

func run() int {
	bm := cerberus.NewBootstrapManager("cerberusd").
		SetDescription("Cerberus on-access scanning gateway").
		SetVersion(version)
	bm.ParseArgsOrExit()

	boot, err := bm.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cerberusd: %v\n", err)
		if boot != nil {
			for _, e := range boot.Validation.Errors {
				fmt.Fprintf(os.Stderr, "  error: %s\n", e)
			}
		}
		return 1
	}

	logCfg, err := logger.FromSettings(boot.Settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cerberusd: %v\n", err)
		return 1
	}
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cerberusd: %v\n", err)
		return 1
	}
	defer func() { _ = log.Close() }()
	log.RedirectStandardLog()
	zl := log.Zerolog()

	zl.Info().
		Str("source", boot.Report.Source).
		Int("keys", boot.Config.Store().Len()).
		Int("rules", boot.Config.Extensions().Len()).
		Int("ignored", boot.Report.Ignored).
		Strs("env_overrides", boot.EnvOverrides).
		Strs("flag_overrides", boot.FlagOverrides).
		Dur("load_time", boot.LoadedDuration).
		Msg("configuration loaded")
	for _, w := range boot.Validation.Warnings {
		zl.Warn().Msg(w)
	}

	if bm.CheckOnly() {
		fmt.Fprintln(os.Stdout, boot.Validation.String())
		return 0
	}

	audit, err := boot.OpenAudit()
	if err != nil {
		zl.Error().Err(err).Msg("cannot open audit trail")
		return 1
	}
	defer func() {
		if err := audit.Close(); err != nil {
			zl.Error().Err(err).Msg("audit trail close failed")
		}
	}()

	cerberus.SetAuditLogger(audit)
	if err := cerberus.Publish(boot.Config); err != nil {
		zl.Error().Err(err).Msg("cannot publish configuration")
		return 1
	}

	stats := cerberus.DefaultStats()
	reporter := cerberus.NewStatsReporter(stats, log.Sink(), boot.Settings.StatsReporterConfig(audit))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := reporter.Start(ctx); err != nil {
		zl.Error().Err(err).Msg("cannot start statistics reporter")
		return 1
	}

	zl.Info().
		Str("root", boot.Settings.Root).
		Str("mountpoint", boot.Settings.Mountpoint).
		Dur("stats_every", boot.Settings.StatsEvery).
		Msg("gateway ready")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, append(dumpSignals, os.Interrupt, syscall.SIGTERM)...)
	defer signal.Stop(sigs)

	for sig := range sigs {
		if isDumpSignal(sig) {
			reporter.Trigger()
			continue
		}
		zl.Info().Str("signal", sig.String()).Msg("shutting down")
		break
	}

	reporter.Stop()
	return 0
}

func isDumpSignal(sig os.Signal) bool {
	for _, s := range dumpSignals {
		if s == sig {
			return true
		}
	}
	return false
}
