// source.go: Byte sources feeding the streaming parser
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cerberus

import (
	"io"
	"os"
	"strings"

	"github.com/agilira/go-errors"
)

// Source supplies raw configuration bytes on demand. The streaming parser
// pulls from Read until io.EOF; whoever opened the source closes it.
type Source interface {
	io.Reader
	// Name identifies the source in errors and audit records
	Name() string
	// Close releases the underlying descriptor
	Close() error
}

// FileSource is a Source backed by one open configuration file
type FileSource struct {
	file *os.File
	path string
}

// OpenFileSource opens path for reading. Fails with CERBERUS_OPEN_ERROR when
// the path is empty, missing, unreadable or a directory.
func OpenFileSource(path string) (*FileSource, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New(ErrCodeOpenError, "configuration path cannot be empty")
	}
	if strings.ContainsRune(path, 0) {
		return nil, errors.New(ErrCodeOpenError, "configuration path contains a null byte").
			WithContext("path", path)
	}

	file, err := os.Open(path) // #nosec G304 -- the configuration path is operator supplied
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeOpenError, "cannot open configuration file").
			WithContext("path", path)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, ErrCodeOpenError, "cannot stat configuration file").
			WithContext("path", path)
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, errors.New(ErrCodeOpenError, "configuration path is a directory").
			WithContext("path", path)
	}

	return &FileSource{file: file, path: path}, nil
}

// Read implements io.Reader
func (fs *FileSource) Read(p []byte) (int, error) {
	return fs.file.Read(p)
}

// Name returns the file path
func (fs *FileSource) Name() string {
	return fs.path
}

// Close closes the file
func (fs *FileSource) Close() error {
	return fs.file.Close()
}

// readerSource adapts an arbitrary reader; closing it is a no-op
type readerSource struct {
	io.Reader
	name string
}

func (rs readerSource) Name() string { return rs.name }
func (rs readerSource) Close() error { return nil }

// NewReaderSource wraps r as a Source named name
func NewReaderSource(r io.Reader, name string) Source {
	if name == "" {
		name = "<reader>"
	}
	return readerSource{Reader: r, name: name}
}
