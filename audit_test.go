// audit_test.go: Tests for the audit trail and its storage backends
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cerberus

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for tests
)

// newTestAuditLogger creates an audit logger on a temp file with the given
// extension (".db" or ".jsonl") and closes it with the test
func newTestAuditLogger(t *testing.T, ext string) (*AuditLogger, string) {
	t.Helper()
	cfg := DefaultAuditConfig()
	cfg.Output = filepath.Join(t.TempDir(), "audit"+ext)
	cfg.FlushInterval = 0
	audit, err := NewAuditLogger(cfg)
	if err != nil {
		t.Fatalf("NewAuditLogger(%s): %v", ext, err)
	}
	t.Cleanup(func() { _ = audit.Close() })
	return audit, cfg.Output
}

func TestAuditLevel(t *testing.T) {
	for l := AuditInfo; l <= AuditSecurity; l++ {
		parsed, ok := ParseAuditLevel(l.String())
		if !ok || parsed != l {
			t.Errorf("ParseAuditLevel(%q) = %v, %v", l.String(), parsed, ok)
		}
	}
	if _, ok := ParseAuditLevel("LOUD"); ok {
		t.Error("unknown level parsed")
	}
	if AuditLevel(9).String() != "UNKNOWN" {
		t.Error("out-of-range level should be UNKNOWN")
	}
}

func TestAuditLogger_NilAndDisabled(t *testing.T) {
	var nilLogger *AuditLogger
	nilLogger.Log(AuditInfo, "x", "", "", nil, nil, nil)
	nilLogger.LogKeyOverwritten("s", "k", "a", "b")
	if nilLogger.Enabled() {
		t.Error("nil logger reports enabled")
	}
	if err := nilLogger.Close(); err != nil {
		t.Errorf("nil Close = %v", err)
	}

	disabled, err := NewAuditLogger(AuditConfig{Enabled: false, Output: "/nonexistent/dir/audit.db"})
	if err != nil {
		t.Fatalf("disabled logger must not touch storage: %v", err)
	}
	disabled.LogConfigRejected("s", os.ErrNotExist)
	events, err := disabled.Query(AuditQuery{})
	if err != nil || events != nil {
		t.Errorf("disabled Query = %v, %v", events, err)
	}
	stats, err := disabled.GetStats()
	if err != nil || stats.TotalEvents != 0 {
		t.Errorf("disabled GetStats = %+v, %v", stats, err)
	}
	if err := disabled.Close(); err != nil {
		t.Errorf("disabled Close = %v", err)
	}
}

func TestNewAuditLogger_InvalidConfig(t *testing.T) {
	if _, err := NewAuditLogger(AuditConfig{Enabled: true, FlushInterval: -time.Second}); ErrorCode(err) != ErrCodeInvalidAuditConfig {
		t.Errorf("negative flush interval: %v", err)
	}

	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0600); err != nil {
		t.Fatal(err)
	}
	_, err := NewAuditLogger(AuditConfig{Enabled: true, Output: filepath.Join(blocker, "audit.jsonl")})
	if ErrorCode(err) != ErrCodeInvalidAuditConfig {
		t.Errorf("unwritable output: %v", err)
	}
}

func TestAuditLogger_Backends(t *testing.T) {
	for _, ext := range []string{".db", ".jsonl"} {
		t.Run(strings.TrimPrefix(ext, "."), func(t *testing.T) {
			audit, _ := newTestAuditLogger(t, ext)

			audit.LogKeyOverwritten("/etc/a.xml", "clamd.socket", "/a.sock", "/b.sock")
			audit.LogRuleOverridden("/etc/a.xml", "exe", Blacklisted, Whitelisted)
			audit.LogConfigRejected("/etc/b.xml", os.ErrNotExist)

			all, err := audit.Query(AuditQuery{})
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(all) != 3 {
				t.Fatalf("expected 3 events, got %d", len(all))
			}
			if all[0].Event != AuditEventConfigRejected {
				t.Errorf("newest event first: got %s", all[0].Event)
			}
			for _, e := range all {
				if !VerifyChecksum(e) {
					t.Errorf("checksum mismatch after storage: %+v", e)
				}
				if e.ProcessID != os.Getpid() || e.Component != auditComponent {
					t.Errorf("process fields not recorded: %+v", e)
				}
			}

			bySource, err := audit.Query(AuditQuery{Source: "/etc/a.xml"})
			if err != nil || len(bySource) != 2 {
				t.Errorf("source filter: %d events, %v", len(bySource), err)
			}

			byEvent, err := audit.Query(AuditQuery{Event: AuditEventKeyOverwritten})
			if err != nil || len(byEvent) != 1 {
				t.Fatalf("event filter: %d events, %v", len(byEvent), err)
			}
			if byEvent[0].Key != "clamd.socket" || byEvent[0].OldValue != "/a.sock" || byEvent[0].NewValue != "/b.sock" {
				t.Errorf("unexpected event: %+v", byEvent[0])
			}
			if byEvent[0].Level != AuditWarn {
				t.Errorf("level = %v", byEvent[0].Level)
			}

			limited, err := audit.Query(AuditQuery{Limit: 2})
			if err != nil || len(limited) != 2 {
				t.Errorf("limit: %d events, %v", len(limited), err)
			}

			future, err := audit.Query(AuditQuery{Since: time.Now().Add(time.Hour)})
			if err != nil || len(future) != 0 {
				t.Errorf("since filter: %d events, %v", len(future), err)
			}

			stats, err := audit.GetStats()
			if err != nil {
				t.Fatalf("GetStats: %v", err)
			}
			if stats.TotalEvents != 3 || stats.EventsByLevel["WARN"] != 2 || stats.EventsByEvent[AuditEventConfigRejected] != 1 {
				t.Errorf("unexpected stats: %+v", stats)
			}
			if stats.OldestEvent == nil || stats.NewestEvent == nil {
				t.Error("time range missing")
			}
		})
	}
}

func TestAuditLogger_MinLevel(t *testing.T) {
	cfg := DefaultAuditConfig()
	cfg.Output = filepath.Join(t.TempDir(), "audit.jsonl")
	cfg.FlushInterval = 0
	cfg.MinLevel = AuditCritical
	audit, err := NewAuditLogger(cfg)
	if err != nil {
		t.Fatalf("NewAuditLogger: %v", err)
	}
	defer func() { _ = audit.Close() }()

	// WARN is dropped, CRITICAL kept
	audit.LogKeyOverwritten("s", "k", "a", "b")
	audit.LogConfigRejected("s", os.ErrPermission)

	events, err := audit.Query(AuditQuery{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 1 || events[0].Event != AuditEventConfigRejected {
		t.Errorf("MinLevel not applied: %+v", events)
	}
}

func TestAuditLogger_BufferFlushesWhenFull(t *testing.T) {
	cfg := DefaultAuditConfig()
	cfg.Output = filepath.Join(t.TempDir(), "audit.jsonl")
	cfg.FlushInterval = 0
	cfg.BufferSize = 2
	audit, err := NewAuditLogger(cfg)
	if err != nil {
		t.Fatalf("NewAuditLogger: %v", err)
	}
	defer func() { _ = audit.Close() }()

	audit.LogKeyOverwritten("s", "a", "1", "2")
	audit.LogKeyOverwritten("s", "b", "1", "2")

	data, err := os.ReadFile(cfg.Output)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if strings.Count(string(data), "\n") != 2 {
		t.Errorf("full buffer not written through:\n%s", data)
	}
}

func TestAuditLogger_CloseFlushes(t *testing.T) {
	cfg := DefaultAuditConfig()
	cfg.Output = filepath.Join(t.TempDir(), "audit.db")
	audit, err := NewAuditLogger(cfg)
	if err != nil {
		t.Fatalf("NewAuditLogger: %v", err)
	}
	audit.LogKeyOverwritten("s", "k", "a", "b")
	if err := audit.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := audit.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}

	db, err := sql.Open("sqlite3", cfg.Output)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer func() { _ = db.Close() }()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM audit_events`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("rows = %d, want 1", count)
	}

	var version int
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_info`).Scan(&version); err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if version != auditSchemaVersion {
		t.Errorf("schema version = %d, want %d", version, auditSchemaVersion)
	}
}

func TestVerifyChecksum_DetectsTampering(t *testing.T) {
	e := AuditEvent{
		Timestamp: time.Date(2025, 1, 2, 3, 4, 5, 6, time.UTC),
		Event:     AuditEventKeyOverwritten,
		Component: auditComponent,
		Source:    "/etc/cerberus.xml",
		Key:       "clamd.socket",
		OldValue:  "/a",
		NewValue:  "/b",
	}
	e.Checksum = checksumOf(e)
	if !VerifyChecksum(e) {
		t.Fatal("fresh checksum rejected")
	}

	tampered := e
	tampered.NewValue = "/evil"
	if VerifyChecksum(tampered) {
		t.Error("tampered value accepted")
	}
	tampered = e
	tampered.Checksum = ""
	if VerifyChecksum(tampered) {
		t.Error("missing checksum accepted")
	}
}

func TestParse_AuditTrail(t *testing.T) {
	audit, _ := newTestAuditLogger(t, ".jsonl")
	opts := ParserOptions{Audit: audit}

	doc := `<clamfs>
  <clamd socket="/a"/>
  <clamd socket="/b"/>
  <extension name="exe" action="blacklist"/>
  <extension name="EXE" action="allow"/>
</clamfs>`
	if _, _, err := Parse(strings.NewReader(doc), opts); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	// A rejected document records the rejection and none of its overwrites
	bad := `<clamfs><log level="a"/><log level="b"/><extension name="x"/></clamfs>`
	if _, _, err := Parse(strings.NewReader(bad), opts); !IsSchemaError(err) {
		t.Fatalf("expected SchemaError, got %v", err)
	}

	overwrites, err := audit.Query(AuditQuery{Event: AuditEventKeyOverwritten})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(overwrites) != 1 || overwrites[0].Key != "clamd.socket" {
		t.Errorf("overwrites = %+v", overwrites)
	}

	overrides, err := audit.Query(AuditQuery{Event: AuditEventRuleOverridden})
	if err != nil || len(overrides) != 1 {
		t.Fatalf("overrides = %+v, %v", overrides, err)
	}
	if overrides[0].OldValue != "blacklisted" || overrides[0].NewValue != "whitelisted" {
		t.Errorf("override values = %v -> %v", overrides[0].OldValue, overrides[0].NewValue)
	}

	loaded, _ := audit.Query(AuditQuery{Event: AuditEventConfigLoaded})
	rejected, _ := audit.Query(AuditQuery{Event: AuditEventConfigRejected})
	if len(loaded) != 1 || len(rejected) != 1 {
		t.Errorf("loaded=%d rejected=%d", len(loaded), len(rejected))
	}
	if rejected[0].Context["error_code"] != ErrCodeSchemaError {
		t.Errorf("rejection code = %v", rejected[0].Context["error_code"])
	}
}

func TestConfigHolder_AuditsPublication(t *testing.T) {
	audit, _ := newTestAuditLogger(t, ".db")
	h := NewConfigHolder()
	h.SetAuditLogger(audit)

	cfg := mustParse(t, `<clamfs><extension name="exe" action="deny"/><extension name="txt" action="allow"/></clamfs>`)
	if err := h.Publish(cfg); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	events, err := audit.Query(AuditQuery{Event: AuditEventConfigPublished})
	if err != nil || len(events) != 1 {
		t.Fatalf("published events = %+v, %v", events, err)
	}
	if events[0].Level != AuditSecurity {
		t.Errorf("level = %v", events[0].Level)
	}
	// JSON numbers decode as float64
	if events[0].Context["blacklisted"] != float64(1) || events[0].Context["rules"] != float64(2) {
		t.Errorf("context = %v", events[0].Context)
	}
}
