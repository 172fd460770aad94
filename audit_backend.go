// audit_backend.go: Storage backends for the audit trail
//
// Two backends sit behind one interface: a SQLite database with a versioned
// schema (the default) and an append-only JSON lines file selected by a
// .jsonl output path.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cerberus

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/agilira/go-errors"
	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

type auditBackend interface {
	Write(events []AuditEvent) error
	Flush() error
	Close() error
	Query(filter AuditQuery) ([]AuditEvent, error)
	GetStats() (*AuditDatabaseStats, error)
}

// AuditQuery selects stored audit events. Zero fields match everything.
type AuditQuery struct {
	Event  string
	Source string
	Since  time.Time
	// Limit caps the result, newest events first (0: no limit)
	Limit int
}

func (q AuditQuery) matches(e AuditEvent) bool {
	if q.Event != "" && e.Event != q.Event {
		return false
	}
	if q.Source != "" && e.Source != q.Source {
		return false
	}
	if !q.Since.IsZero() && e.Timestamp.Before(q.Since) {
		return false
	}
	return true
}

// AuditDatabaseStats summarizes the stored audit trail
type AuditDatabaseStats struct {
	Backend       string           `json:"backend"`
	TotalEvents   int64            `json:"total_events"`
	EventsByLevel map[string]int64 `json:"events_by_level"`
	EventsByEvent map[string]int64 `json:"events_by_event"`
	OldestEvent   *time.Time       `json:"oldest_event,omitempty"`
	NewestEvent   *time.Time       `json:"newest_event,omitempty"`
	StorageSize   int64            `json:"storage_size_bytes"`
	SchemaVersion int              `json:"schema_version"`
}

func createAuditBackend(config AuditConfig) (auditBackend, error) {
	output := config.Output
	if output == "" {
		output = DefaultAuditPath()
	}
	if err := os.MkdirAll(filepath.Dir(output), 0750); err != nil {
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to create audit directory").
			WithContext("output", output)
	}
	if strings.EqualFold(filepath.Ext(output), ".jsonl") {
		return newJSONLBackend(output)
	}
	return newSQLiteBackend(output, config.RetentionDays)
}

// sqliteAuditBackend stores events in the audit_events table
type sqliteAuditBackend struct {
	db         *sql.DB
	path       string
	insertStmt *sql.Stmt
	mu         sync.RWMutex
	closed     bool
}

const auditSchemaVersion = 2

// auditTimeLayout is fixed-width so stored timestamps sort as text
const auditTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func newSQLiteBackend(path string, retentionDays int) (*sqliteAuditBackend, error) {
	// WAL keeps CLI readers from blocking the daemon while it writes
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_cache_size=1000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to open audit database").WithContext("path", path)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to reach audit database").WithContext("path", path)
	}

	s := &sqliteAuditBackend{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.insertStmt, err = db.Prepare(`
	INSERT INTO audit_events (
		timestamp, level, event, component, source, key,
		old_value, new_value, process_id, process_name, context, checksum
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to prepare audit insert statement")
	}

	if retentionDays > 0 {
		_ = s.prune(retentionDays) // retention is best effort
	}
	return s, nil
}

// migrate brings the schema up to auditSchemaVersion inside one transaction
func (s *sqliteAuditBackend) migrate() (err error) {
	if _, err = s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_info (
		version INTEGER PRIMARY KEY,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to create schema_info table")
	}

	version, err := s.schemaVersion()
	if err != nil {
		return err
	}
	if version >= auditSchemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to begin audit migration")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for v := version; v < auditSchemaVersion; v++ {
		for _, stmt := range auditMigrations[v] {
			if _, err = tx.Exec(stmt); err != nil {
				return errors.Wrap(err, ErrCodeIOError, "audit schema migration failed").
					WithContext("from_version", v)
			}
		}
	}
	if _, err = tx.Exec(`INSERT OR REPLACE INTO schema_info (version, updated_at) VALUES (?, CURRENT_TIMESTAMP)`,
		auditSchemaVersion); err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to record audit schema version")
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to commit audit migration")
	}
	return nil
}

// auditMigrations[v] upgrades the schema from version v to v+1
var auditMigrations = [auditSchemaVersion][]string{
	{
		`CREATE TABLE IF NOT EXISTS audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			level TEXT NOT NULL,
			event TEXT NOT NULL,
			component TEXT NOT NULL,
			source TEXT,
			key TEXT,
			old_value TEXT,
			new_value TEXT,
			process_id INTEGER NOT NULL,
			process_name TEXT NOT NULL,
			context TEXT,
			checksum TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_event ON audit_events(event)`,
	},
	{
		`CREATE INDEX IF NOT EXISTS idx_audit_source_event ON audit_events(source, event, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_created_at ON audit_events(created_at)`,
	},
}

func (s *sqliteAuditBackend) schemaVersion() (int, error) {
	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_info ORDER BY version DESC LIMIT 1`).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, ErrCodeIOError, "failed to read audit schema version")
	}
	return version, nil
}

func (s *sqliteAuditBackend) prune(retentionDays int) error {
	_, err := s.db.Exec(`DELETE FROM audit_events WHERE created_at < datetime('now', '-' || ? || ' days')`, retentionDays)
	return err
}

func (s *sqliteAuditBackend) Write(events []AuditEvent) (err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New(ErrCodeIOError, "audit database is closed")
	}
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to begin audit transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt := tx.Stmt(s.insertStmt)
	defer func() { _ = stmt.Close() }()

	for _, event := range events {
		if err = insertAuditEvent(stmt, event); err != nil {
			return errors.Wrap(err, ErrCodeIOError, "failed to insert audit event").
				WithContext("event", event.Event)
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to commit audit transaction")
	}
	return nil
}

func insertAuditEvent(stmt *sql.Stmt, event AuditEvent) error {
	oldValue, err := jsonText(event.OldValue)
	if err != nil {
		return err
	}
	newValue, err := jsonText(event.NewValue)
	if err != nil {
		return err
	}
	context, err := jsonText(event.Context)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(
		event.Timestamp.UTC().Format(auditTimeLayout),
		event.Level.String(),
		event.Event,
		event.Component,
		event.Source,
		event.Key,
		oldValue,
		newValue,
		event.ProcessID,
		event.ProcessName,
		context,
		event.Checksum,
	)
	return err
}

func jsonText(v interface{}) (string, error) {
	if v == nil {
		return "", nil
	}
	if m, ok := v.(map[string]interface{}); ok && m == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *sqliteAuditBackend) Query(filter AuditQuery) ([]AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.New(ErrCodeIOError, "audit database is closed")
	}

	query := `SELECT timestamp, level, event, component, source, key, old_value, new_value,
		process_id, process_name, context, checksum FROM audit_events`
	var (
		where []string
		args  []interface{}
	)
	if filter.Event != "" {
		where = append(where, "event = ?")
		args = append(args, filter.Event)
	}
	if filter.Source != "" {
		where = append(where, "source = ?")
		args = append(args, filter.Source)
	}
	if !filter.Since.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, filter.Since.UTC().Format(auditTimeLayout))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to query audit events")
	}
	defer func() { _ = rows.Close() }()

	var events []AuditEvent
	for rows.Next() {
		var (
			e                            AuditEvent
			ts, level                    string
			source, key                  sql.NullString
			oldValue, newValue, ctxValue sql.NullString
			checksum                     sql.NullString
		)
		if err := rows.Scan(&ts, &level, &e.Event, &e.Component, &source, &key, &oldValue, &newValue,
			&e.ProcessID, &e.ProcessName, &ctxValue, &checksum); err != nil {
			return nil, errors.Wrap(err, ErrCodeIOError, "failed to scan audit event")
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		e.Level, _ = ParseAuditLevel(level)
		e.Source, e.Key, e.Checksum = source.String, key.String, checksum.String
		e.OldValue = decodeJSONText(oldValue.String)
		e.NewValue = decodeJSONText(newValue.String)
		if ctxValue.String != "" {
			_ = json.Unmarshal([]byte(ctxValue.String), &e.Context)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to read audit events")
	}
	return events, nil
}

func decodeJSONText(text string) interface{} {
	if text == "" {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return text
	}
	return v
}

func (s *sqliteAuditBackend) GetStats() (*AuditDatabaseStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.New(ErrCodeIOError, "audit database is closed")
	}

	stats := &AuditDatabaseStats{
		Backend:       "sqlite",
		EventsByLevel: make(map[string]int64),
		EventsByEvent: make(map[string]int64),
		SchemaVersion: auditSchemaVersion,
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM audit_events`).Scan(&stats.TotalEvents); err != nil {
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to count audit events")
	}
	if err := s.groupCount(`SELECT level, COUNT(*) FROM audit_events GROUP BY level`, stats.EventsByLevel); err != nil {
		return nil, err
	}
	if err := s.groupCount(`SELECT event, COUNT(*) FROM audit_events GROUP BY event`, stats.EventsByEvent); err != nil {
		return nil, err
	}

	var oldest, newest sql.NullString
	if err := s.db.QueryRow(`SELECT MIN(timestamp), MAX(timestamp) FROM audit_events`).Scan(&oldest, &newest); err != nil {
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to read audit time range")
	}
	stats.OldestEvent = parseOptionalTime(oldest)
	stats.NewestEvent = parseOptionalTime(newest)

	if info, err := os.Stat(s.path); err == nil {
		stats.StorageSize = info.Size()
	}
	return stats, nil
}

func (s *sqliteAuditBackend) groupCount(query string, into map[string]int64) error {
	rows, err := s.db.Query(query)
	if err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to group audit events")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var name string
		var count int64
		if err := rows.Scan(&name, &count); err != nil {
			return errors.Wrap(err, ErrCodeIOError, "failed to scan audit group")
		}
		into[name] = count
	}
	return rows.Err()
}

func parseOptionalTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil
	}
	return &t
}

// Flush checkpoints the WAL so other processes see committed events
func (s *sqliteAuditBackend) Flush() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}
	if _, err := s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to checkpoint audit database")
	}
	return nil
}

func (s *sqliteAuditBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	_, _ = s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`)
	if s.insertStmt != nil {
		_ = s.insertStmt.Close()
	}
	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to close audit database")
	}
	return nil
}

// jsonlAuditBackend appends one JSON object per line
type jsonlAuditBackend struct {
	file   *os.File
	path   string
	mu     sync.Mutex
	closed bool
}

func newJSONLBackend(path string) (*jsonlAuditBackend, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) // #nosec G304 -- operator supplied audit path
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to open audit log").WithContext("path", path)
	}
	return &jsonlAuditBackend{file: file, path: path}, nil
}

func (j *jsonlAuditBackend) Write(events []AuditEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return errors.New(ErrCodeIOError, "audit log is closed")
	}

	w := bufio.NewWriter(j.file)
	enc := json.NewEncoder(w)
	for _, event := range events {
		if err := enc.Encode(event); err != nil {
			return errors.Wrap(err, ErrCodeIOError, "failed to encode audit event")
		}
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to append audit events").WithContext("path", j.path)
	}
	return nil
}

// readAll decodes the whole log, skipping lines that do not decode
func (j *jsonlAuditBackend) readAll() ([]AuditEvent, error) {
	file, err := os.Open(j.path) // #nosec G304 -- same path the backend writes
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to read audit log").WithContext("path", j.path)
	}
	defer func() { _ = file.Close() }()

	var events []AuditEvent
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var e AuditEvent
		if json.Unmarshal(scanner.Bytes(), &e) == nil {
			events = append(events, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to scan audit log").WithContext("path", j.path)
	}
	return events, nil
}

func (j *jsonlAuditBackend) Query(filter AuditQuery) ([]AuditEvent, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	all, err := j.readAll()
	if err != nil {
		return nil, err
	}
	var out []AuditEvent
	for i := len(all) - 1; i >= 0; i-- {
		if !filter.matches(all[i]) {
			continue
		}
		out = append(out, all[i])
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (j *jsonlAuditBackend) GetStats() (*AuditDatabaseStats, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	all, err := j.readAll()
	if err != nil {
		return nil, err
	}
	stats := &AuditDatabaseStats{
		Backend:       "jsonl",
		EventsByLevel: make(map[string]int64),
		EventsByEvent: make(map[string]int64),
		SchemaVersion: 1,
		TotalEvents:   int64(len(all)),
	}
	for i := range all {
		e := all[i]
		stats.EventsByLevel[e.Level.String()]++
		stats.EventsByEvent[e.Event]++
		if stats.OldestEvent == nil || e.Timestamp.Before(*stats.OldestEvent) {
			stats.OldestEvent = &all[i].Timestamp
		}
		if stats.NewestEvent == nil || e.Timestamp.After(*stats.NewestEvent) {
			stats.NewestEvent = &all[i].Timestamp
		}
	}
	if info, err := os.Stat(j.path); err == nil {
		stats.StorageSize = info.Size()
	}
	return stats, nil
}

func (j *jsonlAuditBackend) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	if err := j.file.Sync(); err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to sync audit log").WithContext("path", j.path)
	}
	return nil
}

func (j *jsonlAuditBackend) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.file.Close()
}
