// Package cli provides the administrative command-line interface for Cerberus.
//
// The CLI is built on the Orpheus framework and works on configuration
// documents offline: it parses them exactly as the gateway would, lists the
// resulting keys and extension rules, classifies paths, exports the parsed
// state and inspects the audit trail.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"io"
	"os"

	"github.com/agilira/cerberus"
	"github.com/agilira/orpheus/pkg/orpheus"
)

// Version of the cerberus tool set
const Version = "1.0.0"

// Manager routes cerberus subcommands
type Manager struct {
	app         *orpheus.App
	out         io.Writer
	auditLogger *cerberus.AuditLogger // optional
}

// NewManager creates a CLI manager writing to standard output
func NewManager() *Manager {
	manager := &Manager{out: os.Stdout}
	manager.buildApp()
	return manager
}

// buildApp registers a fresh command tree. Orpheus keeps parsed flag values
// on the commands, so every Run starts from a new tree.
func (m *Manager) buildApp() {
	m.app = orpheus.New("cerberus").
		SetDescription("Inspect and validate Cerberus gateway configuration").
		SetVersion(Version)

	m.setupConfigCommands()
	m.setupAuditCommands()
	m.setupUtilityCommands()
}

// WithAudit records every document the CLI parses in auditLogger and makes
// it the default trail for the audit commands
func (m *Manager) WithAudit(auditLogger *cerberus.AuditLogger) *Manager {
	m.auditLogger = auditLogger
	return m
}

// WithOutput redirects command output
func (m *Manager) WithOutput(w io.Writer) *Manager {
	if w != nil {
		m.out = w
	}
	return m
}

// Run executes the command named by args (without the program name). Flags
// given to one Run never carry over to the next.
func (m *Manager) Run(args []string) error {
	m.buildApp()
	return m.app.Run(args)
}

// setupConfigCommands registers the commands that parse a document
func (m *Manager) setupConfigCommands() {
	// check <file>
	checkCmd := orpheus.NewCommand("check", "Parse a document and validate the gateway settings").
		AddBoolFlag("strict", "s", false, "Treat warnings as errors").
		SetHandler(m.handleCheck)
	m.app.AddCommand(checkCmd)

	// keys <file> [--prefix=]
	keysCmd := orpheus.NewCommand("keys", "List configuration keys and values").
		AddFlag("prefix", "p", "", "Key prefix filter").
		SetHandler(m.handleKeys)
	m.app.AddCommand(keysCmd)

	// get <file> <key>
	getCmd := orpheus.NewCommand("get", "Print the value of a key").
		SetHandler(m.handleGet)
	m.app.AddCommand(getCmd)

	// rules <file> [--class=]
	rulesCmd := orpheus.NewCommand("rules", "List extension rules").
		AddFlag("class", "c", "", "Only rules of this class (blacklisted|whitelisted|unclassified)").
		SetHandler(m.handleRules)
	m.app.AddCommand(rulesCmd)

	// classify <file> <path>
	classifyCmd := orpheus.NewCommand("classify", "Classify a path by its extension").
		SetHandler(m.handleClassify)
	m.app.AddCommand(classifyCmd)

	// export <file> [--format=yaml] [--settings]
	exportCmd := orpheus.NewCommand("export", "Export the parsed document").
		AddFlag("format", "f", "yaml", "Output format (yaml|json)").
		AddBoolFlag("settings", "", false, "Include the typed gateway settings").
		SetHandler(m.handleExport)
	m.app.AddCommand(exportCmd)
}

// setupAuditCommands registers the audit trail commands
func (m *Manager) setupAuditCommands() {
	auditCmd := orpheus.NewCommand("audit", "Audit trail inspection")

	queryCmd := auditCmd.Subcommand("query", "Query audit events", m.handleAuditQuery)
	queryCmd.AddFlag("output", "o", "", "Audit trail (.db or .jsonl)")
	queryCmd.AddFlag("event", "e", "", "Event type filter")
	queryCmd.AddFlag("source", "s", "", "Configuration source filter")
	queryCmd.AddFlag("since", "", "", "Only events newer than this (e.g. 24h, 7d, 2w)")
	queryCmd.AddIntFlag("limit", "l", 100, "Maximum results")

	statsCmd := auditCmd.Subcommand("stats", "Show audit trail statistics", m.handleAuditStats)
	statsCmd.AddFlag("output", "o", "", "Audit trail (.db or .jsonl)")

	verifyCmd := auditCmd.Subcommand("verify", "Verify event checksums", m.handleAuditVerify)
	verifyCmd.AddFlag("output", "o", "", "Audit trail (.db or .jsonl)")

	m.app.AddCommand(auditCmd)
}

// setupUtilityCommands registers diagnostics and shell integration
func (m *Manager) setupUtilityCommands() {
	infoCmd := orpheus.NewCommand("info", "Show tool information").
		AddBoolFlag("verbose", "v", false, "Show gateway keys and defaults").
		SetHandler(m.handleInfo)
	m.app.AddCommand(infoCmd)

	completionCmd := orpheus.NewCommand("completion", "Generate shell completion").
		SetHandler(m.handleCompletion)
	m.app.AddCommand(completionCmd)
}
