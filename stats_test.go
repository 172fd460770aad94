// stats_test.go: Tests for statistics counters and dumps
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cerberus

import (
	"fmt"
	"sync"
	"testing"
)

// captureSink collects dumped lines
type captureSink struct {
	mu    sync.Mutex
	lines []string
}

func (c *captureSink) Printf(format string, v ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, fmt.Sprintf(format, v...))
}

func (c *captureSink) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}

func TestStats_ConcurrentIncrements(t *testing.T) {
	const goroutines, perGoroutine = 32, 1000
	s := NewStats()

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				s.Inc(EarlyCacheHit)
				s.RecordOpen(i%2 == 0)
			}
		}()
	}
	wg.Wait()

	total := uint64(goroutines * perGoroutine)
	if got := s.Load(EarlyCacheHit); got != total {
		t.Errorf("EarlyCacheHit = %d, want %d", got, total)
	}
	if got := s.Load(OpenCalled); got != total {
		t.Errorf("OpenCalled = %d, want %d", got, total)
	}
	if s.Load(OpenAllowed)+s.Load(OpenDenied) != s.Load(OpenCalled) {
		t.Error("allowed + denied must equal called")
	}
}

func TestStats_DumpFormat(t *testing.T) {
	s := NewStats()
	s.Inc(WhitelistHit)
	s.RecordOpen(true)
	s.RecordClassification(Blacklisted)
	s.RecordClassification(Blacklisted)
	s.RecordClassification(Unclassified)

	sink := &captureSink{}
	s.DumpToLog(sink)

	want := []string{
		StatsBeginBanner,
		"Early cache hit: 0",
		"Early cache miss: 0",
		"Late cache hit: 0",
		"Late cache miss: 0",
		"Whitelist hit: 1",
		"Blacklist hit: 2",
		"Files bigger than maximal-size: 0",
		"open() called: 1",
		"open() allowed: 1",
		"open() denied: 0",
		StatsEndBanner,
	}
	lines := sink.Lines()
	if len(lines) != len(want) {
		t.Fatalf("dump has %d lines, want %d: %v", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}

	// Dumping does not reset
	if s.Load(BlacklistHit) != 2 {
		t.Error("dump reset the counters")
	}
}

func TestStats_InvalidCounterAndNilSink(t *testing.T) {
	s := NewStats()
	s.Inc(Counter(-1))
	s.Inc(numCounters)
	if s.Load(numCounters) != 0 || Counter(99).String() != "unknown" {
		t.Error("invalid counters must be ignored")
	}
	s.DumpToLog(nil)

	if len(Counters()) != int(numCounters) {
		t.Errorf("Counters() = %d entries", len(Counters()))
	}
	for _, c := range Counters() {
		if c.String() == "unknown" {
			t.Errorf("counter %d has no label", c)
		}
	}
}

func TestStatsSnapshot(t *testing.T) {
	s := NewStats()
	s.Inc(TooBigFile)
	snap := s.Snapshot()
	s.Inc(TooBigFile)

	if snap.Get(TooBigFile) != 1 {
		t.Errorf("snapshot changed after later increments: %d", snap.Get(TooBigFile))
	}
	m := snap.Map()
	if len(m) != int(numCounters) || m["Files bigger than maximal-size"] != 1 {
		t.Errorf("Map = %v", m)
	}
}

func TestDefaultStats(t *testing.T) {
	s := DefaultStats()
	if s == nil || DefaultStats() != s {
		t.Fatal("DefaultStats must return one shared counter set")
	}

	before := s.Load(BlacklistHit)
	DefaultStats().Inc(BlacklistHit)
	if got := s.Snapshot().Get(BlacklistHit); got != before+1 {
		t.Errorf("increment through DefaultStats not visible: %d, want %d", got, before+1)
	}
}
