// configuration_test.go: Tests for one-time configuration publication
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cerberus

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

func mustParse(t *testing.T, doc string) *Configuration {
	t.Helper()
	cfg, _, err := Parse(strings.NewReader(doc), ParserOptions{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return cfg
}

func TestConfigHolder_PublishOnce(t *testing.T) {
	h := NewConfigHolder()
	if h.Loaded() || h.Current() != nil {
		t.Fatal("fresh holder should be empty")
	}

	if err := h.Publish(nil); ErrorCode(err) != ErrCodeInvalidConfig {
		t.Errorf("Publish(nil) = %v", err)
	}

	first := mustParse(t, `<clamfs><clamd socket="/a"/></clamfs>`)
	if err := h.Publish(first); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	second := mustParse(t, `<clamfs><clamd socket="/b"/></clamfs>`)
	if err := h.Publish(second); ErrorCode(err) != ErrCodeAlreadyPublished {
		t.Errorf("second Publish = %v", err)
	}

	if h.Current() != first || !h.Loaded() {
		t.Error("first configuration must stay published")
	}
}

func TestConfigHolder_ConcurrentPublish(t *testing.T) {
	h := NewConfigHolder()
	cfg := mustParse(t, `<clamfs/>`)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if h.Publish(cfg) == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if successes != 1 {
		t.Errorf("%d publications succeeded, want 1", successes)
	}
}

func TestConfigHolder_WaitPublished(t *testing.T) {
	h := NewConfigHolder()
	cfg := mustParse(t, `<clamfs/>`)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := h.WaitPublished(ctx); err == nil {
		t.Error("WaitPublished should time out before publication")
	}

	done := make(chan *Configuration, 1)
	go func() {
		got, _ := h.WaitPublished(context.Background())
		done <- got
	}()
	time.Sleep(10 * time.Millisecond)
	if err := h.Publish(cfg); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-done:
		if got != cfg {
			t.Error("waiter received a different configuration")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not released by Publish")
	}
}

func TestConfiguration_NilSafe(t *testing.T) {
	var c *Configuration
	if c.Store().Len() != 0 || c.Extensions().Len() != 0 || c.Source() != "" || !c.LoadedAt().IsZero() {
		t.Error("nil configuration should read as empty")
	}
	if c.Classify("a.exe") != Unclassified {
		t.Error("nil configuration must not classify")
	}
}
