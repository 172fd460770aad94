// Utility functions for the Cerberus CLI
//
// Document loading, export encoding, audit trail access and duration
// parsing shared by the command handlers.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/agilira/cerberus"
	"github.com/agilira/go-errors"
	"github.com/agilira/orpheus/pkg/orpheus"
	"go.yaml.in/yaml/v3"
)

// exportDocument is the serialized form of a parsed document
type exportDocument struct {
	Source   string                    `json:"source" yaml:"source"`
	Keys     map[string]string         `json:"keys" yaml:"keys"`
	Rules    []cerberus.ExtensionRule  `json:"rules" yaml:"rules"`
	Settings *cerberus.GatewaySettings `json:"settings,omitempty" yaml:"settings,omitempty"`
	Report   *cerberus.ParseReport     `json:"report,omitempty" yaml:"report,omitempty"`
}

// requireArg returns positional argument i or a usage error naming it
func requireArg(ctx *orpheus.Context, i int, what string) (string, error) {
	arg := ctx.GetArg(i)
	if arg == "" {
		return "", errors.New(cerberus.ErrCodeInvalidConfig, fmt.Sprintf("missing argument: %s", what)).
			WithContext("position", i)
	}
	return arg, nil
}

// loadConfiguration parses filePath with the gateway vocabulary. Documents
// are recorded in the manager's audit trail when one is attached.
func (m *Manager) loadConfiguration(filePath string) (*cerberus.Configuration, *cerberus.ParseReport, error) {
	opts := cerberus.GatewayParserOptions()
	opts.Audit = m.auditLogger
	return cerberus.ParseFile(filePath, opts)
}

// parseClassFilter parses the --class flag of the rules command
func parseClassFilter(raw string) (cerberus.ACLItem, bool, error) {
	if strings.TrimSpace(raw) == "" {
		return cerberus.Unclassified, false, nil
	}
	class, err := cerberus.ParseACLItem(raw)
	if err != nil {
		return cerberus.Unclassified, false, err
	}
	return class, true, nil
}

// encodeExport serializes doc as yaml or json
func encodeExport(doc exportDocument, format string) ([]byte, error) {
	switch format {
	case "", "yaml", "yml":
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, errors.Wrap(err, cerberus.ErrCodeIOError, "failed to encode YAML")
		}
		if err := enc.Close(); err != nil {
			return nil, errors.Wrap(err, cerberus.ErrCodeIOError, "failed to encode YAML")
		}
		return buf.Bytes(), nil
	case "json":
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, cerberus.ErrCodeIOError, "failed to encode JSON")
		}
		return append(data, '\n'), nil
	default:
		return nil, errors.New(cerberus.ErrCodeInvalidConfig, fmt.Sprintf("unsupported export format: %s", format))
	}
}

// openAudit returns the trail at output, or the attached one when output is
// empty. The returned func releases a trail opened here.
func (m *Manager) openAudit(output string) (*cerberus.AuditLogger, func(), error) {
	if output == "" {
		if !m.auditLogger.Enabled() {
			return nil, nil, errors.New(cerberus.ErrCodeInvalidAuditConfig, "audit logging not enabled (use --output)")
		}
		return m.auditLogger, func() {}, nil
	}

	if _, err := os.Stat(output); err != nil {
		return nil, nil, errors.Wrap(err, cerberus.ErrCodeIOError, "audit trail not found").
			WithContext("output", output)
	}

	cfg := cerberus.DefaultAuditConfig()
	cfg.Output = output
	cfg.FlushInterval = 0
	cfg.RetentionDays = 0
	audit, err := cerberus.NewAuditLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return audit, func() { _ = audit.Close() }, nil
}

var extendedDuration = regexp.MustCompile(`^(\d+)(d|w)$`)

// parseExtendedDuration parses Go durations plus days (d) and weeks (w),
// e.g. "30d", "2w", "24h"
func parseExtendedDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	matches := extendedDuration.FindStringSubmatch(s)
	if len(matches) != 3 {
		_, err := time.ParseDuration(s)
		return 0, err
	}

	value, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration value: %s", matches[1])
	}

	switch matches[2] {
	case "d":
		return time.Duration(value) * 24 * time.Hour, nil
	default:
		return time.Duration(value) * 7 * 24 * time.Hour, nil
	}
}
