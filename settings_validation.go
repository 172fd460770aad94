// settings_validation.go: Validation of gateway settings
//
// Struct-level rules run through go-playground/validator; the cross-field
// rules of the gateway follow as plain checks. Problems that block startup
// are errors, questionable but workable values are warnings.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cerberus

import (
	goerrors "errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/agilira/go-errors"
	"github.com/go-playground/validator/v10"
)

// ValidationResult holds the outcome of settings validation
type ValidationResult struct {
	Valid    bool     `json:"valid" yaml:"valid"`
	Errors   []string `json:"errors,omitempty" yaml:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// String returns a human-readable summary
func (vr ValidationResult) String() string {
	if vr.Valid {
		if len(vr.Warnings) == 0 {
			return "Settings are valid"
		}
		return fmt.Sprintf("Settings are valid with %d warning(s)", len(vr.Warnings))
	}
	return fmt.Sprintf("Settings are invalid: %d error(s), %d warning(s)", len(vr.Errors), len(vr.Warnings))
}

func (vr *ValidationResult) addError(msg string) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, msg)
}

func (vr *ValidationResult) addWarning(msg string) {
	vr.Warnings = append(vr.Warnings, msg)
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func settingsValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("abspath", func(fl validator.FieldLevel) bool {
			p := fl.Field().String()
			return p == "" || filepath.IsAbs(p)
		})
		_ = validate.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
			switch strings.ToLower(fl.Field().String()) {
			case "", "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
				return true
			default:
				return false
			}
		})
		_ = validate.RegisterValidation("logformat", func(fl validator.FieldLevel) bool {
			switch strings.ToLower(fl.Field().String()) {
			case "", "console", "text", "json":
				return true
			default:
				return false
			}
		})
	})
	return validate
}

// fieldKeys maps struct fields to the store keys they are bound from
var fieldKeys = map[string]string{
	"ClamdSocket":  KeyClamdSocket,
	"ClamdHost":    KeyClamdHost,
	"ClamdPort":    KeyClamdPort,
	"ClamdTimeout": KeyClamdTimeout,
	"Root":         KeyRoot,
	"Mountpoint":   KeyMountpoint,
	"CacheEntries": KeyCacheEntries,
	"CacheExpire":  KeyCacheExpire,
	"MaxFileSize":  KeyMaxFileSize,
	"LogMethod":    KeyLogMethod,
	"LogLevel":     KeyLogLevel,
	"LogFormat":    KeyLogFormat,
	"StatsEvery":   KeyStatsEvery,
}

// Validate returns the first validation error, nil when the settings are usable
func (s GatewaySettings) Validate() error {
	result := s.ValidateDetailed()
	if result.Valid {
		return nil
	}
	return errors.New(ErrCodeInvalidSettings, result.Errors[0]).
		WithContext("error_count", len(result.Errors))
}

// ValidateDetailed runs every rule and collects errors and warnings
func (s GatewaySettings) ValidateDetailed() ValidationResult {
	result := ValidationResult{Valid: true, Errors: []string{}, Warnings: []string{}}

	if err := settingsValidator().Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if goerrors.As(err, &verrs) {
			for _, e := range verrs {
				result.addError(describeFieldError(e))
			}
		} else {
			result.addError(err.Error())
		}
	}

	s.validateClamd(&result)
	s.validateFilesystem(&result)
	s.validateLogging(&result)
	s.validateStats(&result)
	return result
}

func describeFieldError(e validator.FieldError) string {
	key, ok := fieldKeys[e.Field()]
	if !ok {
		key = e.Field()
	}
	msg := fmt.Sprintf("invalid setting '%s': rule '%s'", key, e.Tag())
	if e.Param() != "" {
		msg += fmt.Sprintf(" (expected: %s)", e.Param())
	}
	if v := e.Value(); v != nil && v != "" {
		msg += fmt.Sprintf(", actual: '%v'", v)
	}
	return msg
}

func (s GatewaySettings) validateClamd(result *ValidationResult) {
	if s.ClamdSocket == "" && s.ClamdHost == "" {
		result.addError("either clamd.socket or clamd.host must be set")
	}
	if s.ClamdSocket != "" && s.ClamdHost != "" {
		result.addWarning("both clamd.socket and clamd.host are set; the socket takes precedence")
	}
	if s.ClamdHost != "" && s.ClamdPort == 0 {
		result.addError("clamd.port is required when clamd.host is set")
	}
	if s.ClamdTimeout > 0 && s.ClamdTimeout < time.Second {
		result.addWarning("clamd.timeout below 1s will fail scans of large files")
	}
}

func (s GatewaySettings) validateFilesystem(result *ValidationResult) {
	if s.Root != "" && s.Mountpoint != "" && filepath.Clean(s.Root) == filepath.Clean(s.Mountpoint) {
		result.addError("filesystem.mountpoint must differ from filesystem.root")
	}
	if s.MaxFileSize == 0 {
		result.addWarning("file.maximal-size is not set; files of any size will be scanned")
	}
	if s.CacheEntries == 0 {
		result.addWarning("cache.entries is 0; every open() will be scanned")
	}
}

func (s GatewaySettings) validateLogging(result *ValidationResult) {
	if s.LogMethod == "file" && s.LogFile == "" {
		result.addError("log.file is required when log.method is 'file'")
	}
	if s.LogMethod != "file" && s.LogFile != "" {
		result.addWarning("log.file is ignored unless log.method is 'file'")
	}
}

func (s GatewaySettings) validateStats(result *ValidationResult) {
	if s.StatsEvery > 0 && s.StatsEvery < time.Second {
		result.addWarning("stats.every below 1s floods the log")
	}
}
