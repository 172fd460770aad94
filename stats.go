// stats.go: Lock-free operational statistics
//
// Counters are incremented from every request-handling goroutine of the
// filesystem layer and read by the reporter. Each counter is independent;
// a snapshot reads them one by one with no cross-counter consistency.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cerberus

import (
	"sync/atomic"
)

// Counter identifies one statistics counter
type Counter int

// Counters in dump order
const (
	EarlyCacheHit Counter = iota
	EarlyCacheMiss
	LateCacheHit
	LateCacheMiss
	WhitelistHit
	BlacklistHit
	TooBigFile
	OpenCalled
	OpenAllowed
	OpenDenied

	numCounters
)

var counterLabels = [numCounters]string{
	EarlyCacheHit:  "Early cache hit",
	EarlyCacheMiss: "Early cache miss",
	LateCacheHit:   "Late cache hit",
	LateCacheMiss:  "Late cache miss",
	WhitelistHit:   "Whitelist hit",
	BlacklistHit:   "Blacklist hit",
	TooBigFile:     "Files bigger than maximal-size",
	OpenCalled:     "open() called",
	OpenAllowed:    "open() allowed",
	OpenDenied:     "open() denied",
}

// Banner lines framing a statistics dump
const (
	StatsBeginBanner = "--- begin of statistics ---"
	StatsEndBanner   = "--- end of statistics ---"
)

// String returns the label used in dumps
func (c Counter) String() string {
	if !c.valid() {
		return "unknown"
	}
	return counterLabels[c]
}

func (c Counter) valid() bool {
	return c >= 0 && c < numCounters
}

// Counters lists every counter in dump order
func Counters() []Counter {
	out := make([]Counter, numCounters)
	for i := range out {
		out[i] = Counter(i)
	}
	return out
}

// LogSink is the line-oriented destination of a statistics dump.
// *log.Logger satisfies it.
type LogSink interface {
	Printf(format string, v ...interface{})
}

// Stats holds the gateway counters. The zero value is ready to use.
type Stats struct {
	counters [numCounters]atomic.Uint64
}

// NewStats creates a zeroed counter set
func NewStats() *Stats {
	return &Stats{}
}

var defaultStats = NewStats()

// DefaultStats returns the process-wide counter set. The daemon reports it
// and the filesystem layer increments it.
func DefaultStats() *Stats { return defaultStats }

// Inc adds one to counter c. Unknown counters are ignored.
func (s *Stats) Inc(c Counter) {
	if c.valid() {
		s.counters[c].Add(1)
	}
}

// Load returns the current value of c
func (s *Stats) Load(c Counter) uint64 {
	if !c.valid() {
		return 0
	}
	return s.counters[c].Load()
}

// RecordOpen counts an open() request together with its outcome
func (s *Stats) RecordOpen(allowed bool) {
	s.Inc(OpenCalled)
	if allowed {
		s.Inc(OpenAllowed)
	} else {
		s.Inc(OpenDenied)
	}
}

// RecordClassification counts a whitelist or blacklist decision.
// Unclassified files count nothing here; they go on to the scanner.
func (s *Stats) RecordClassification(class ACLItem) {
	switch class {
	case Whitelisted:
		s.Inc(WhitelistHit)
	case Blacklisted:
		s.Inc(BlacklistHit)
	}
}

// StatsSnapshot is a point-in-time copy of every counter
type StatsSnapshot struct {
	values [numCounters]uint64
}

// Snapshot reads each counter once
func (s *Stats) Snapshot() StatsSnapshot {
	var snap StatsSnapshot
	for i := range s.counters {
		snap.values[i] = s.counters[i].Load()
	}
	return snap
}

// Get returns the value of c in the snapshot
func (ss StatsSnapshot) Get(c Counter) uint64 {
	if !c.valid() {
		return 0
	}
	return ss.values[c]
}

// Map returns the snapshot keyed by counter label
func (ss StatsSnapshot) Map() map[string]uint64 {
	out := make(map[string]uint64, numCounters)
	for i, v := range ss.values {
		out[counterLabels[i]] = v
	}
	return out
}

// Dump writes the framed dump of the snapshot to sink
func (ss StatsSnapshot) Dump(sink LogSink) {
	sink.Printf("%s", StatsBeginBanner)
	for i, v := range ss.values {
		sink.Printf("%s: %d", counterLabels[i], v)
	}
	sink.Printf("%s", StatsEndBanner)
}

// DumpToLog writes the begin banner, one "label: value" line per counter
// and the end banner to sink. A nil sink is a no-op.
func (s *Stats) DumpToLog(sink LogSink) {
	if sink == nil {
		return
	}
	s.Snapshot().Dump(sink)
}
