// errors.go: Error codes and error inspection helpers for Cerberus
//
// Every failure surfaced by the package is a coded go-errors value. The three
// parse-taxonomy codes (open, parse, schema) are fatal to gateway startup.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cerberus

import (
	goerrors "errors"

	"github.com/agilira/go-errors"
)

// Error codes for Cerberus operations
const (
	// Configuration ingestion taxonomy
	ErrCodeOpenError   = "CERBERUS_OPEN_ERROR"
	ErrCodeParseError  = "CERBERUS_PARSE_ERROR"
	ErrCodeSchemaError = "CERBERUS_SCHEMA_ERROR"

	// Startup and ambient codes
	ErrCodeInvalidConfig      = "CERBERUS_INVALID_CONFIG"
	ErrCodeInvalidValue       = "CERBERUS_INVALID_VALUE"
	ErrCodeAlreadyPublished   = "CERBERUS_ALREADY_PUBLISHED"
	ErrCodeInvalidSettings    = "CERBERUS_INVALID_SETTINGS"
	ErrCodeIOError            = "CERBERUS_IO_ERROR"
	ErrCodeInvalidAuditConfig = "CERBERUS_INVALID_AUDIT_CONFIG"
)

// ErrorCode returns the code of the outermost coded error in err's chain,
// or an empty string when err carries no code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		return string(coder.ErrorCode())
	}
	return ""
}

// IsOpenError reports whether err is a configuration OpenError
func IsOpenError(err error) bool {
	return ErrorCode(err) == ErrCodeOpenError
}

// IsParseError reports whether err is a configuration ParseError
func IsParseError(err error) bool {
	return ErrorCode(err) == ErrCodeParseError
}

// IsSchemaError reports whether err is a configuration SchemaError
func IsSchemaError(err error) bool {
	return ErrorCode(err) == ErrCodeSchemaError
}

// IsStartupFatal reports whether err belongs to the ingestion taxonomy that
// must abort gateway startup.
func IsStartupFatal(err error) bool {
	switch ErrorCode(err) {
	case ErrCodeOpenError, ErrCodeParseError, ErrCodeSchemaError:
		return true
	default:
		return false
	}
}
