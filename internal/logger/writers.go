// writers.go: Output writers per format
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// WriterStrategy wraps a raw output in a format-specific writer
type WriterStrategy interface {
	CreateWriter(output io.Writer) io.Writer
}

// JSONWriterStrategy writes zerolog's native JSON
type JSONWriterStrategy struct{}

func (JSONWriterStrategy) CreateWriter(output io.Writer) io.Writer {
	return output
}

// ConsoleWriterStrategy writes human-readable, optionally colored lines
type ConsoleWriterStrategy struct {
	NoColor bool
}

func (s ConsoleWriterStrategy) CreateWriter(output io.Writer) io.Writer {
	return zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339, NoColor: s.NoColor}
}

// TextWriterStrategy is the console format without color
type TextWriterStrategy struct{}

func (TextWriterStrategy) CreateWriter(output io.Writer) io.Writer {
	return zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339, NoColor: true}
}

func strategyFor(format Format, toFile bool) WriterStrategy {
	switch format {
	case FormatJSON:
		return JSONWriterStrategy{}
	case FormatText:
		return TextWriterStrategy{}
	default:
		// color escapes do not belong in files
		return ConsoleWriterStrategy{NoColor: toFile}
	}
}

// createWriter builds the writer for cfg and, for files, the closer that
// releases it
func createWriter(cfg Config) (io.Writer, io.Closer, error) {
	if cfg.Output != nil {
		return strategyFor(cfg.Format, true).CreateWriter(cfg.Output), nil, nil
	}

	switch cfg.Method {
	case MethodStderr:
		return strategyFor(cfg.Format, false).CreateWriter(os.Stderr), nil, nil
	case MethodFile:
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0750); err != nil {
			return nil, nil, err
		}
		rotating := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			LocalTime:  true,
		}
		return strategyFor(cfg.Format, true).CreateWriter(rotating), rotating, nil
	default:
		return strategyFor(cfg.Format, false).CreateWriter(os.Stdout), nil, nil
	}
}
