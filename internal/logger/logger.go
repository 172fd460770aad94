// logger.go: Process logger of the gateway
//
// Built on zerolog with lumberjack rotation for file output. The logger also
// provides the line sink statistics dumps are written to.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package logger

import (
	"io"
	stdlog "log"

	"github.com/agilira/cerberus"
	"github.com/agilira/go-errors"
	"github.com/rs/zerolog"
)

// Logger is a configured zerolog logger
type Logger struct {
	zerolog zerolog.Logger
	config  Config
	closer  io.Closer
}

// New builds a logger from cfg
func New(cfg Config) (*Logger, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	w, closer, err := createWriter(cfg)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidLogConfig, "failed to create log writer").
			WithContext("path", cfg.FilePath)
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(w)).
		Level(cfg.Level).
		With().
		Timestamp().
		Str("component", "cerberus").
		Logger()

	return &Logger{zerolog: zl, config: cfg, closer: closer}, nil
}

// FromSettings converts the gateway log settings into a Config
func FromSettings(s cerberus.GatewaySettings) (Config, error) {
	cfg := DefaultConfig()
	level, err := ParseLevel(s.LogLevel)
	if err != nil {
		return cfg, err
	}
	if s.Verbose && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}
	cfg.Level = level
	cfg.Format = ParseFormat(s.LogFormat)
	if s.LogMethod != "" {
		cfg.Method = Method(s.LogMethod)
	}
	cfg.FilePath = s.LogFile
	return cfg, nil
}

// Zerolog returns the underlying zerolog logger
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zerolog
}

// Config returns the configuration the logger was built from
func (l *Logger) Config() Config {
	return l.config
}

// RedirectStandardLog sends the standard library logger through l
func (l *Logger) RedirectStandardLog() {
	stdlog.SetFlags(0)
	stdlog.SetOutput(l.zerolog)
}

// Close releases the log file, if any
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Sink returns a statistics sink writing each line at info level
func (l *Logger) Sink() cerberus.LogSink {
	return sink{logger: l.zerolog.With().Str("source", "stats").Logger()}
}

type sink struct {
	logger zerolog.Logger
}

func (s sink) Printf(format string, v ...interface{}) {
	s.logger.Info().Msgf(format, v...)
}
