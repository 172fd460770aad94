// integration_test.go: Tests for the daemon bootstrap
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cerberus

import (
	goerrors "errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestBootstrapManager_ParseAndHelp(t *testing.T) {
	bm := NewBootstrapManager("cerberusd").SetDescription("gateway").SetVersion("1.0.0")

	if err := bm.Parse([]string{"--config=/tmp/x.xml", "-h"}); !goerrors.Is(err, ErrHelpRequested) {
		t.Errorf("expected ErrHelpRequested, got %v", err)
	}

	if _, err := bm.Load(); ErrorCode(err) != ErrCodeInvalidConfig {
		t.Errorf("Load before Parse: %v", err)
	}

	if err := bm.Parse([]string{"--config=/tmp/x.xml", "--check"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if bm.ConfigPath() != "/tmp/x.xml" || !bm.CheckOnly() {
		t.Errorf("ConfigPath=%q CheckOnly=%v", bm.ConfigPath(), bm.CheckOnly())
	}

	bound := bm.BoundFlags()
	if bound[FlagConfig] != "CERBERUSD_CONFIG" || bound[FlagAuditOutput] != "CERBERUSD_AUDIT_OUTPUT" {
		t.Errorf("bound flags: %v", bound)
	}
}

func TestBootstrapManager_LoadWithOverrides(t *testing.T) {
	path := writeTestDocument(t, gatewayTestDocument)
	t.Setenv("CERBERUS_CACHE_ENTRIES", "512")

	bm := NewBootstrapManager("cerberusd")
	err := bm.Parse([]string{"--config=" + path, "--log-level=warn", "--stats-every=5s"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	b, err := bm.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if b.Config == nil || b.Report == nil || b.Config.Source() != path {
		t.Fatal("configuration or report missing")
	}
	if b.Settings.CacheEntries != 512 || b.Settings.LogLevel != "warn" || b.Settings.StatsEvery != 5*time.Second {
		t.Errorf("overrides not applied: %+v", b.Settings)
	}
	// Overrides never touch the parsed store
	if v, _ := b.Config.Store().Get(KeyCacheEntries); v != "8192" {
		t.Errorf("store value changed to %q", v)
	}
	if len(b.EnvOverrides) != 1 || b.EnvOverrides[0] != KeyCacheEntries {
		t.Errorf("EnvOverrides = %v", b.EnvOverrides)
	}
	if strings.Join(b.FlagOverrides, ",") != KeyLogLevel+","+KeyStatsEvery {
		t.Errorf("FlagOverrides = %v", b.FlagOverrides)
	}
	if !b.Validation.Valid {
		t.Errorf("validation: %v", b.Validation.Errors)
	}
}

func TestBootstrapManager_LoadErrors(t *testing.T) {
	t.Run("missing_document", func(t *testing.T) {
		bm := NewBootstrapManager("cerberusd")
		if err := bm.Parse([]string{"--config=" + filepath.Join(t.TempDir(), "none.xml")}); err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if _, err := bm.Load(); ErrorCode(err) != ErrCodeOpenError {
			t.Errorf("expected %s, got %v", ErrCodeOpenError, err)
		}
	})

	t.Run("invalid_settings", func(t *testing.T) {
		path := writeTestDocument(t, `<clamfs><filesystem root="/srv" mountpoint="/srv"/></clamfs>`)
		bm := NewBootstrapManager("cerberusd")
		if err := bm.Parse([]string{"--config=" + path}); err != nil {
			t.Fatalf("Parse: %v", err)
		}
		b, err := bm.Load()
		if ErrorCode(err) != ErrCodeInvalidSettings {
			t.Fatalf("expected %s, got %v", ErrCodeInvalidSettings, err)
		}
		if b == nil || b.Validation.Valid || len(b.Validation.Errors) == 0 {
			t.Error("invalid load should still return the validation result")
		}
	})

	t.Run("invalid_env_override", func(t *testing.T) {
		path := writeTestDocument(t, gatewayTestDocument)
		t.Setenv("CERBERUS_STATS_EVERY", "sometimes")
		bm := NewBootstrapManager("cerberusd")
		if err := bm.Parse([]string{"--config=" + path}); err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if _, err := bm.Load(); ErrorCode(err) != ErrCodeInvalidSettings {
			t.Errorf("expected %s, got %v", ErrCodeInvalidSettings, err)
		}
	})
}

func TestBootstrap_OpenAuditAndPublish(t *testing.T) {
	path := writeTestDocument(t, gatewayTestDocument)
	auditPath := filepath.Join(t.TempDir(), "trail", "audit.jsonl")

	bm := NewBootstrapManager("cerberusd")
	if err := bm.Parse([]string{"--config=" + path, "--audit-output=" + auditPath}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	b, err := bm.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	audit, err := b.OpenAudit()
	if err != nil {
		t.Fatalf("OpenAudit: %v", err)
	}
	defer func() { _ = audit.Close() }()

	holder := NewConfigHolder()
	if err := b.Publish(holder, audit); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if holder.Current() != b.Config {
		t.Error("holder does not hold the loaded configuration")
	}
	if err := audit.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	loaded, err := audit.Query(AuditQuery{Event: AuditEventConfigLoaded})
	if err != nil || len(loaded) != 1 {
		t.Errorf("config load events: %d, %v", len(loaded), err)
	}
	published, err := audit.Query(AuditQuery{Event: AuditEventConfigPublished})
	if err != nil || len(published) != 1 {
		t.Errorf("publish events: %d, %v", len(published), err)
	}
}
