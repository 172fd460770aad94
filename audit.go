// audit.go: Audit trail of configuration lifecycle and statistics snapshots
//
// Records every accepted or rejected configuration document, each key or
// extension rule a later element replaced, the one-time publication and the
// statistics dumps. Events are buffered, flushed in batches by a background
// ticker and sealed with a SHA-256 checksum for tamper detection.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cerberus

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
)

// AuditLevel represents the severity of audit events
type AuditLevel int

const (
	AuditInfo AuditLevel = iota
	AuditWarn
	AuditCritical
	AuditSecurity
)

func (al AuditLevel) String() string {
	switch al {
	case AuditInfo:
		return "INFO"
	case AuditWarn:
		return "WARN"
	case AuditCritical:
		return "CRITICAL"
	case AuditSecurity:
		return "SECURITY"
	default:
		return "UNKNOWN"
	}
}

// ParseAuditLevel is the inverse of AuditLevel.String
func ParseAuditLevel(s string) (AuditLevel, bool) {
	for l := AuditInfo; l <= AuditSecurity; l++ {
		if l.String() == s {
			return l, true
		}
	}
	return AuditInfo, false
}

// Audit event names
const (
	AuditEventConfigLoaded    = "config_loaded"
	AuditEventConfigRejected  = "config_rejected"
	AuditEventKeyOverwritten  = "key_overwritten"
	AuditEventRuleOverridden  = "rule_overridden"
	AuditEventConfigPublished = "config_published"
	AuditEventStatsSnapshot   = "stats_snapshot"
)

const auditComponent = "cerberus"

// AuditEvent represents a single auditable event
type AuditEvent struct {
	Timestamp   time.Time              `json:"timestamp"`
	Level       AuditLevel             `json:"level"`
	Event       string                 `json:"event"`
	Component   string                 `json:"component"`
	Source      string                 `json:"source,omitempty"`
	Key         string                 `json:"key,omitempty"`
	OldValue    interface{}            `json:"old_value,omitempty"`
	NewValue    interface{}            `json:"new_value,omitempty"`
	ProcessID   int                    `json:"process_id"`
	ProcessName string                 `json:"process_name"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Checksum    string                 `json:"checksum"`
}

// AuditConfig configures the audit trail
type AuditConfig struct {
	Enabled bool `json:"enabled"`
	// Output selects the backend: a path ending in .jsonl writes JSON lines,
	// anything else is a SQLite database (empty: DefaultAuditPath)
	Output        string        `json:"output"`
	MinLevel      AuditLevel    `json:"min_level"`
	BufferSize    int           `json:"buffer_size"`
	FlushInterval time.Duration `json:"flush_interval"`
	RetentionDays int           `json:"retention_days"`
}

// DefaultAuditPath is the SQLite database used when no output is configured
func DefaultAuditPath() string {
	return filepath.Join(os.TempDir(), "cerberus", "audit.db")
}

// DefaultAuditConfig returns an enabled SQLite audit configuration
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		Enabled:       true,
		Output:        "",
		MinLevel:      AuditInfo,
		BufferSize:    256,
		FlushInterval: 5 * time.Second,
		RetentionDays: 90,
	}
}

// AuditLogger buffers audit events and writes them to a backend.
// Every method is safe on a nil *AuditLogger, which records nothing.
type AuditLogger struct {
	config      AuditConfig
	backend     auditBackend
	buffer      []AuditEvent
	bufferMu    sync.Mutex
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closeOnce   sync.Once
	processID   int
	processName string
}

// NewAuditLogger creates an audit logger. A disabled configuration yields a
// logger that accepts and drops every event without touching storage.
func NewAuditLogger(config AuditConfig) (*AuditLogger, error) {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultAuditConfig().BufferSize
	}
	if config.FlushInterval < 0 {
		return nil, errors.New(ErrCodeInvalidAuditConfig, "audit flush interval cannot be negative")
	}

	logger := &AuditLogger{
		config:      config,
		stopCh:      make(chan struct{}),
		processID:   os.Getpid(),
		processName: getProcessName(),
	}
	if !config.Enabled {
		return logger, nil
	}

	backend, err := createAuditBackend(config)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidAuditConfig, "failed to initialize audit backend").
			WithContext("output", config.Output)
	}
	logger.backend = backend
	logger.buffer = make([]AuditEvent, 0, config.BufferSize)

	if config.FlushInterval > 0 {
		logger.flushTicker = time.NewTicker(config.FlushInterval)
		go logger.flushLoop()
	}
	return logger, nil
}

// Enabled reports whether events are being recorded
func (al *AuditLogger) Enabled() bool {
	return al != nil && al.backend != nil && al.config.Enabled
}

// Log records an audit event
func (al *AuditLogger) Log(level AuditLevel, event, source, key string, oldVal, newVal interface{}, context map[string]interface{}) {
	if !al.Enabled() || level < al.config.MinLevel {
		return
	}

	auditEvent := AuditEvent{
		Timestamp:   timecache.CachedTime(),
		Level:       level,
		Event:       event,
		Component:   auditComponent,
		Source:      source,
		Key:         key,
		OldValue:    oldVal,
		NewValue:    newVal,
		ProcessID:   al.processID,
		ProcessName: al.processName,
		Context:     context,
	}
	auditEvent.Checksum = checksumOf(auditEvent)

	al.bufferMu.Lock()
	al.buffer = append(al.buffer, auditEvent)
	if len(al.buffer) >= al.config.BufferSize {
		_ = al.flushBufferUnsafe() // a failed batch stays buffered for the next flush
	}
	al.bufferMu.Unlock()
}

// LogConfigLoaded records a successfully parsed document
func (al *AuditLogger) LogConfigLoaded(report *ParseReport) {
	if report == nil {
		return
	}
	al.Log(AuditInfo, AuditEventConfigLoaded, report.Source, "", nil, nil, map[string]interface{}{
		"elements":         report.Elements,
		"keys_written":     report.KeysWritten,
		"rules_applied":    report.RulesApplied,
		"overwritten_keys": report.OverwrittenKeys,
		"overridden_rules": report.OverriddenRules,
		"ignored":          report.Ignored,
		"duration_ns":      report.Duration.Nanoseconds(),
	})
}

// LogConfigRejected records a document that failed to open or parse
func (al *AuditLogger) LogConfigRejected(source string, err error) {
	if err == nil {
		return
	}
	al.Log(AuditCritical, AuditEventConfigRejected, source, "", nil, nil, map[string]interface{}{
		"error_code": ErrorCode(err),
		"error":      err.Error(),
	})
}

// LogKeyOverwritten records a scalar key set twice in one document
func (al *AuditLogger) LogKeyOverwritten(source, key, oldValue, newValue string) {
	al.Log(AuditWarn, AuditEventKeyOverwritten, source, key, oldValue, newValue, nil)
}

// LogRuleOverridden records an extension rule replaced by a later one
func (al *AuditLogger) LogRuleOverridden(source, ext string, oldClass, newClass ACLItem) {
	al.Log(AuditWarn, AuditEventRuleOverridden, source, ext, oldClass.String(), newClass.String(), nil)
}

// LogConfigPublished records the one-time publication of a configuration
func (al *AuditLogger) LogConfigPublished(cfg *Configuration) {
	if cfg == nil {
		return
	}
	al.Log(AuditSecurity, AuditEventConfigPublished, cfg.Source(), "", nil, nil, map[string]interface{}{
		"keys":        cfg.Store().Len(),
		"rules":       cfg.Extensions().Len(),
		"blacklisted": cfg.Extensions().Count(Blacklisted),
		"whitelisted": cfg.Extensions().Count(Whitelisted),
	})
}

// LogStatsSnapshot records the counters written by a statistics dump
func (al *AuditLogger) LogStatsSnapshot(reason string, snap StatsSnapshot) {
	if !al.Enabled() {
		return
	}
	context := make(map[string]interface{}, numCounters+1)
	for label, v := range snap.Map() {
		context[label] = v
	}
	context["reason"] = reason
	al.Log(AuditInfo, AuditEventStatsSnapshot, "", "", nil, nil, context)
}

// Flush immediately writes all buffered events
func (al *AuditLogger) Flush() error {
	if !al.Enabled() {
		return nil
	}
	al.bufferMu.Lock()
	defer al.bufferMu.Unlock()
	if err := al.flushBufferUnsafe(); err != nil {
		return err
	}
	return al.backend.Flush()
}

// Query flushes pending events and returns those matching filter
func (al *AuditLogger) Query(filter AuditQuery) ([]AuditEvent, error) {
	if !al.Enabled() {
		return nil, nil
	}
	if err := al.Flush(); err != nil {
		return nil, err
	}
	return al.backend.Query(filter)
}

// GetStats returns storage statistics of the backend
func (al *AuditLogger) GetStats() (*AuditDatabaseStats, error) {
	if !al.Enabled() {
		return &AuditDatabaseStats{EventsByLevel: map[string]int64{}, EventsByEvent: map[string]int64{}}, nil
	}
	if err := al.Flush(); err != nil {
		return nil, err
	}
	return al.backend.GetStats()
}

// Close flushes pending events and releases the backend. Safe to call twice.
func (al *AuditLogger) Close() error {
	if al == nil {
		return nil
	}
	var closeErr error
	al.closeOnce.Do(func() {
		close(al.stopCh)
		if al.flushTicker != nil {
			al.flushTicker.Stop()
		}
		if al.backend == nil {
			return
		}
		if err := al.Flush(); err != nil {
			closeErr = errors.Wrap(err, ErrCodeIOError, "failed to flush audit logger during close")
		}
		if err := al.backend.Close(); err != nil && closeErr == nil {
			closeErr = errors.Wrap(err, ErrCodeIOError, "failed to close audit backend")
		}
	})
	return closeErr
}

func (al *AuditLogger) flushLoop() {
	for {
		select {
		case <-al.flushTicker.C:
			_ = al.Flush() // retried on the next tick
		case <-al.stopCh:
			return
		}
	}
}

// flushBufferUnsafe writes the buffer to the backend (caller holds bufferMu)
func (al *AuditLogger) flushBufferUnsafe() error {
	if len(al.buffer) == 0 {
		return nil
	}
	if err := al.backend.Write(al.buffer); err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to write audit events")
	}
	al.buffer = al.buffer[:0]
	return nil
}

// checksumOf seals the identifying fields of an event
func checksumOf(event AuditEvent) string {
	data := fmt.Sprintf("%s:%s:%s:%s:%s:%v:%v",
		event.Timestamp.UTC().Format(time.RFC3339Nano),
		event.Event, event.Component, event.Source, event.Key,
		event.OldValue, event.NewValue)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// VerifyChecksum reports whether event still matches its checksum
func VerifyChecksum(event AuditEvent) bool {
	return event.Checksum != "" && checksumOf(event) == event.Checksum
}

func getProcessName() string {
	if len(os.Args) > 0 && os.Args[0] != "" {
		return filepath.Base(os.Args[0])
	}
	return auditComponent
}
