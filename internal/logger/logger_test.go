// logger_test.go: Tests for the process logger
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agilira/cerberus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultLogger(t *testing.T) {
	log, err := New(DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.Equal(t, zerolog.InfoLevel, log.Zerolog().GetLevel())
	assert.NoError(t, log.Close())
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Method = MethodFile
	_, err := New(cfg)
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidLogConfig, cerberus.ErrorCode(err))

	cfg = DefaultConfig()
	cfg.Method = "syslog"
	_, err = New(cfg)
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.MaxSizeMB = 0
	_, err = New(cfg)
	require.Error(t, err)
}

func TestParseLevelAndFormat(t *testing.T) {
	level, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)

	assert.Equal(t, FormatJSON, ParseFormat("json"))
	assert.Equal(t, FormatText, ParseFormat(" Text "))
	assert.Equal(t, FormatConsole, ParseFormat("fancy"))
	assert.Equal(t, "console", FormatConsole.String())
}

func TestSink_WritesStatisticsDumpAtInfo(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Format = FormatJSON
	cfg.Output = &buf

	log, err := New(cfg)
	require.NoError(t, err)

	stats := cerberus.NewStats()
	stats.Inc(cerberus.OpenCalled)
	stats.Inc(cerberus.OpenAllowed)
	stats.DumpToLog(log.Sink())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, len(cerberus.Counters())+2)

	var first, second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[8]), &second))

	assert.Equal(t, "info", first["level"])
	assert.Equal(t, cerberus.StatsBeginBanner, first["message"])
	assert.Equal(t, "stats", first["source"])
	assert.Equal(t, "open() called: 1", second["message"])
}

func TestSink_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Level = zerolog.WarnLevel
	cfg.Output = &buf

	log, err := New(cfg)
	require.NoError(t, err)
	log.Sink().Printf("hidden %d", 1)
	assert.Empty(t, buf.String())
}

func TestNew_FileOutputRotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "cerberus.log")

	cfg := DefaultConfig()
	cfg.Method = MethodFile
	cfg.FilePath = path
	cfg.Format = FormatText

	log, err := New(cfg)
	require.NoError(t, err)
	log.Zerolog().Info().Msg("hello file")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello file")
	assert.NotContains(t, string(data), "\x1b[")
}

func TestFromSettings(t *testing.T) {
	s := cerberus.DefaultGatewaySettings()
	s.LogLevel = "warn"
	s.LogFormat = "json"
	s.LogMethod = "file"
	s.LogFile = "/var/log/cerberus.log"

	cfg, err := FromSettings(s)
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, cfg.Level)
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.Equal(t, MethodFile, cfg.Method)
	assert.Equal(t, "/var/log/cerberus.log", cfg.FilePath)

	s.Verbose = true
	cfg, err = FromSettings(s)
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, cfg.Level)

	s.LogLevel = "nope"
	_, err = FromSettings(s)
	assert.Error(t, err)
}
