// config.go: Logger configuration
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package logger

import (
	"io"
	"strings"

	"github.com/agilira/go-errors"
	"github.com/rs/zerolog"
)

// Error codes of the logger package
const (
	ErrCodeInvalidLogConfig = "CERBERUS_INVALID_LOG_CONFIG"
)

// Format selects how records are rendered
type Format int

const (
	FormatConsole Format = iota
	FormatJSON
	FormatText
)

// String returns the configuration name of the format
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatText:
		return "text"
	default:
		return "console"
	}
}

// ParseFormat maps a configuration name to a Format; unknown names are console
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON
	case "text":
		return FormatText
	default:
		return FormatConsole
	}
}

// ParseLevel maps a configuration name to a zerolog level
func ParseLevel(s string) (zerolog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zerolog.InfoLevel, errors.Wrap(err, ErrCodeInvalidLogConfig, "invalid log level '"+s+"'")
	}
	return level, nil
}

// Method names where records go
type Method string

const (
	MethodStdout Method = "stdout"
	MethodStderr Method = "stderr"
	MethodFile   Method = "file"
)

// Config describes a process logger
type Config struct {
	Level      zerolog.Level
	Format     Format
	Method     Method
	FilePath   string
	MaxSizeMB  int
	MaxBackups int

	// Output replaces the writer chosen by Method when set
	Output io.Writer
}

// DefaultConfig logs info and above to stdout in console format
func DefaultConfig() Config {
	return Config{
		Level:      zerolog.InfoLevel,
		Format:     FormatConsole,
		Method:     MethodStdout,
		MaxSizeMB:  100,
		MaxBackups: 3,
	}
}

func (c Config) validate() error {
	switch c.Method {
	case MethodStdout, MethodStderr:
	case MethodFile:
		if c.FilePath == "" && c.Output == nil {
			return errors.New(ErrCodeInvalidLogConfig, "file path required when logging to a file")
		}
	default:
		return errors.New(ErrCodeInvalidLogConfig, "unknown log method '"+string(c.Method)+"'")
	}
	if c.MaxSizeMB <= 0 {
		return errors.New(ErrCodeInvalidLogConfig, "max size must be positive")
	}
	return nil
}
