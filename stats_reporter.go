// stats_reporter.go: Periodic and on-demand statistics dumps
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cerberus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/go-errors"
)

// StatsReporterConfig configures a StatsReporter
type StatsReporterConfig struct {
	// Interval between periodic dumps; 0 disables them
	Interval time.Duration
	// AtExit dumps once more when the reporter stops
	AtExit bool
	// Audit records each dump as a stats_snapshot event
	Audit *AuditLogger
}

// StatsReporter writes Stats to a LogSink on a timer, on request and at exit
type StatsReporter struct {
	stats  *Stats
	sink   LogSink
	config StatsReporterConfig

	trigger  chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  atomic.Bool
	stopOnce sync.Once
	dumps    atomic.Uint64
}

// NewStatsReporter creates a reporter for stats writing to sink
func NewStatsReporter(stats *Stats, sink LogSink, config StatsReporterConfig) *StatsReporter {
	return &StatsReporter{
		stats:   stats,
		sink:    sink,
		config:  config,
		trigger: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start launches the reporting goroutine. It ends when ctx is cancelled or
// Stop is called. A reporter can be started once.
func (r *StatsReporter) Start(ctx context.Context) error {
	if r.stats == nil || r.sink == nil {
		return errors.New(ErrCodeInvalidConfig, "stats reporter needs both stats and a sink")
	}
	if r.config.Interval < 0 {
		return errors.New(ErrCodeInvalidConfig, "stats interval cannot be negative").
			WithContext("interval", r.config.Interval.String())
	}
	if !r.running.CompareAndSwap(false, true) {
		return errors.New(ErrCodeInvalidConfig, "stats reporter already started")
	}
	go r.loop(ctx)
	return nil
}

func (r *StatsReporter) loop(ctx context.Context) {
	defer close(r.doneCh)

	var tick <-chan time.Time
	if r.config.Interval > 0 {
		ticker := time.NewTicker(r.config.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-tick:
			r.dump("interval")
		case <-r.trigger:
			r.dump("signal")
		case <-r.stopCh:
			r.finish()
			return
		case <-ctx.Done():
			r.finish()
			return
		}
	}
}

func (r *StatsReporter) finish() {
	if r.config.AtExit {
		r.dump("exit")
	}
}

// Trigger requests an immediate dump. Requests made while one is already
// pending collapse into it.
func (r *StatsReporter) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Stop ends the reporter, performing the at-exit dump when configured, and
// waits for the goroutine to finish. Safe to call more than once.
func (r *StatsReporter) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	if r.running.Load() {
		<-r.doneCh
	}
}

// Dumps returns how many dumps have been written
func (r *StatsReporter) Dumps() uint64 {
	return r.dumps.Load()
}

func (r *StatsReporter) dump(reason string) {
	snap := r.stats.Snapshot()
	snap.Dump(r.sink)
	r.dumps.Add(1)
	r.config.Audit.LogStatsSnapshot(reason, snap)
}
