// Command handlers for the Cerberus CLI
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/agilira/cerberus"
	"github.com/agilira/go-errors"
	"github.com/agilira/orpheus/pkg/orpheus"
)

// handleCheck parses a document the way the gateway does at startup and
// validates the settings bound from it.
func (m *Manager) handleCheck(ctx *orpheus.Context) error {
	filePath, err := requireArg(ctx, 0, "configuration file")
	if err != nil {
		return err
	}
	strict := ctx.GetFlagBool("strict")

	cfg, report, err := m.loadConfiguration(filePath)
	if err != nil {
		return err
	}

	fmt.Fprintf(m.out, "Document: %s\n", report.Source)
	fmt.Fprintf(m.out, "  elements: %d, keys: %d, rules: %d, ignored attributes: %d\n",
		report.Elements, report.KeysWritten, report.RulesApplied, report.Ignored)
	for _, key := range report.OverwrittenKeys {
		fmt.Fprintf(m.out, "  overwritten key: %s\n", key)
	}
	for _, ext := range report.OverriddenRules {
		fmt.Fprintf(m.out, "  overridden rule: %s\n", ext)
	}

	settings, err := cerberus.SettingsFromConfiguration(cfg)
	if err != nil {
		return err
	}
	result := settings.ValidateDetailed()
	fmt.Fprintf(m.out, "%s\n", result.String())
	for _, e := range result.Errors {
		fmt.Fprintf(m.out, "  error: %s\n", e)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(m.out, "  warning: %s\n", w)
	}

	if !result.Valid {
		return errors.New(cerberus.ErrCodeInvalidSettings, "configuration is not usable").
			WithContext("errors", len(result.Errors))
	}
	if strict && len(result.Warnings) > 0 {
		return errors.New(cerberus.ErrCodeInvalidSettings, "configuration has warnings in strict mode").
			WithContext("warnings", len(result.Warnings))
	}
	return nil
}

// handleKeys prints every key=value pair, optionally under a prefix
func (m *Manager) handleKeys(ctx *orpheus.Context) error {
	filePath, err := requireArg(ctx, 0, "configuration file")
	if err != nil {
		return err
	}
	prefix := ctx.GetFlagString("prefix")

	cfg, _, err := m.loadConfiguration(filePath)
	if err != nil {
		return err
	}

	store := cfg.Store()
	for _, key := range store.KeysWithPrefix(prefix) {
		value, _ := store.Get(key)
		fmt.Fprintf(m.out, "%s=%s\n", key, value)
	}
	return nil
}

// handleGet prints a single value
func (m *Manager) handleGet(ctx *orpheus.Context) error {
	filePath, err := requireArg(ctx, 0, "configuration file")
	if err != nil {
		return err
	}
	key, err := requireArg(ctx, 1, "key")
	if err != nil {
		return err
	}

	cfg, _, err := m.loadConfiguration(filePath)
	if err != nil {
		return err
	}

	value, ok := cfg.Store().Get(key)
	if !ok {
		return errors.New(cerberus.ErrCodeInvalidConfig, fmt.Sprintf("key '%s' not found", key)).
			WithContext("source", cfg.Source())
	}
	fmt.Fprintln(m.out, value)
	return nil
}

// handleRules prints the extension rules sorted by extension
func (m *Manager) handleRules(ctx *orpheus.Context) error {
	filePath, err := requireArg(ctx, 0, "configuration file")
	if err != nil {
		return err
	}

	filter, filtered, err := parseClassFilter(ctx.GetFlagString("class"))
	if err != nil {
		return err
	}

	cfg, _, err := m.loadConfiguration(filePath)
	if err != nil {
		return err
	}

	for _, rule := range cfg.Extensions().Rules() {
		if filtered && rule.Class != filter {
			continue
		}
		fmt.Fprintf(m.out, "%-12s %s\n", rule.Class, rule.Extension)
	}
	return nil
}

// handleClassify prints the classification of a path
func (m *Manager) handleClassify(ctx *orpheus.Context) error {
	filePath, err := requireArg(ctx, 0, "configuration file")
	if err != nil {
		return err
	}
	target, err := requireArg(ctx, 1, "path to classify")
	if err != nil {
		return err
	}

	cfg, _, err := m.loadConfiguration(filePath)
	if err != nil {
		return err
	}

	fmt.Fprintf(m.out, "%s: %s\n", target, cfg.Classify(target))
	return nil
}

// handleExport writes the parsed document as YAML or JSON
func (m *Manager) handleExport(ctx *orpheus.Context) error {
	filePath, err := requireArg(ctx, 0, "configuration file")
	if err != nil {
		return err
	}
	format := strings.ToLower(ctx.GetFlagString("format"))
	withSettings := ctx.GetFlagBool("settings")

	cfg, report, err := m.loadConfiguration(filePath)
	if err != nil {
		return err
	}

	doc := exportDocument{
		Source: cfg.Source(),
		Keys:   cfg.Store().Map(),
		Rules:  cfg.Extensions().Rules(),
		Report: report,
	}
	if withSettings {
		settings, err := cerberus.SettingsFromConfiguration(cfg)
		if err != nil {
			return err
		}
		doc.Settings = &settings
	}

	data, err := encodeExport(doc, format)
	if err != nil {
		return err
	}
	_, err = m.out.Write(data)
	return err
}

// handleAuditQuery prints audit events matching the filters, newest first
func (m *Manager) handleAuditQuery(ctx *orpheus.Context) error {
	audit, closeAudit, err := m.openAudit(ctx.GetFlagString("output"))
	if err != nil {
		return err
	}
	defer closeAudit()

	filter := cerberus.AuditQuery{
		Event:  ctx.GetFlagString("event"),
		Source: ctx.GetFlagString("source"),
		Limit:  ctx.GetFlagInt("limit"),
	}
	if since := ctx.GetFlagString("since"); since != "" {
		d, err := parseExtendedDuration(since)
		if err != nil {
			return errors.Wrap(err, cerberus.ErrCodeInvalidValue, "invalid --since value").
				WithContext("since", since)
		}
		filter.Since = time.Now().Add(-d)
	}

	events, err := audit.Query(filter)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(m.out, "No audit events found")
		return nil
	}
	for _, e := range events {
		fmt.Fprintf(m.out, "%s %-8s %-17s", e.Timestamp.Format(time.RFC3339), e.Level, e.Event)
		if e.Source != "" {
			fmt.Fprintf(m.out, " source=%s", e.Source)
		}
		if e.Key != "" {
			fmt.Fprintf(m.out, " key=%s", e.Key)
		}
		if e.OldValue != nil || e.NewValue != nil {
			fmt.Fprintf(m.out, " %v -> %v", e.OldValue, e.NewValue)
		}
		fmt.Fprintln(m.out)
	}
	return nil
}

// handleAuditStats prints storage statistics of the audit trail
func (m *Manager) handleAuditStats(ctx *orpheus.Context) error {
	audit, closeAudit, err := m.openAudit(ctx.GetFlagString("output"))
	if err != nil {
		return err
	}
	defer closeAudit()

	stats, err := audit.GetStats()
	if err != nil {
		return err
	}

	fmt.Fprintf(m.out, "Backend: %s\n", stats.Backend)
	fmt.Fprintf(m.out, "Total events: %d\n", stats.TotalEvents)
	if stats.OldestEvent != nil && stats.NewestEvent != nil {
		fmt.Fprintf(m.out, "Oldest: %s\n", stats.OldestEvent.Format(time.RFC3339))
		fmt.Fprintf(m.out, "Newest: %s\n", stats.NewestEvent.Format(time.RFC3339))
	}
	fmt.Fprintf(m.out, "Storage size: %d bytes\n", stats.StorageSize)
	for _, name := range sortedKeys(stats.EventsByEvent) {
		fmt.Fprintf(m.out, "  %-17s %d\n", name, stats.EventsByEvent[name])
	}
	return nil
}

// handleAuditVerify recomputes the checksum of every stored event
func (m *Manager) handleAuditVerify(ctx *orpheus.Context) error {
	audit, closeAudit, err := m.openAudit(ctx.GetFlagString("output"))
	if err != nil {
		return err
	}
	defer closeAudit()

	events, err := audit.Query(cerberus.AuditQuery{})
	if err != nil {
		return err
	}

	tampered := 0
	for _, e := range events {
		if !cerberus.VerifyChecksum(e) {
			tampered++
			fmt.Fprintf(m.out, "checksum mismatch: %s %s %s\n", e.Timestamp.Format(time.RFC3339Nano), e.Event, e.Key)
		}
	}
	fmt.Fprintf(m.out, "Verified %d event(s), %d mismatch(es)\n", len(events), tampered)
	if tampered > 0 {
		return errors.New(cerberus.ErrCodeIOError, "audit trail failed verification").
			WithContext("mismatches", tampered)
	}
	return nil
}

// handleInfo prints tool information
func (m *Manager) handleInfo(ctx *orpheus.Context) error {
	verbose := ctx.GetFlagBool("verbose")

	fmt.Fprintf(m.out, "Cerberus configuration tools\n")
	fmt.Fprintf(m.out, "Version: %s\n", Version)
	fmt.Fprintf(m.out, "Default document: %s\n", cerberus.DefaultConfigPath)
	fmt.Fprintf(m.out, "Audit logging: %v\n", m.auditLogger.Enabled())

	if verbose {
		defaults := cerberus.DefaultGatewaySettings()
		fmt.Fprintf(m.out, "\nRecognized keys:\n")
		for _, key := range cerberus.GatewayVocabulary().Keys() {
			fmt.Fprintf(m.out, "  %-24s %s\n", key, cerberus.EnvVarForKey(key))
		}
		fmt.Fprintf(m.out, "\nDefaults:\n")
		fmt.Fprintf(m.out, "  clamd.socket   %s\n", defaults.ClamdSocket)
		fmt.Fprintf(m.out, "  clamd.timeout  %s\n", defaults.ClamdTimeout)
		fmt.Fprintf(m.out, "  cache.entries  %d\n", defaults.CacheEntries)
		fmt.Fprintf(m.out, "  cache.expire   %s\n", defaults.CacheExpire)
		fmt.Fprintf(m.out, "  audit trail    %s\n", cerberus.DefaultAuditPath())
	}
	return nil
}

// handleCompletion generates shell completion scripts
func (m *Manager) handleCompletion(ctx *orpheus.Context) error {
	shell := ctx.GetArg(0)
	commands := strings.Join(commandNames, " ")

	switch shell {
	case "bash":
		fmt.Fprintf(m.out, "# Bash completion for cerberus\n")
		fmt.Fprintf(m.out, "# Add to ~/.bashrc: source <(cerberus completion bash)\n")
		fmt.Fprintf(m.out, "_cerberus_completion() {\n")
		fmt.Fprintf(m.out, "  COMPREPLY=($(compgen -W '%s' -- \"${COMP_WORDS[COMP_CWORD]}\"))\n", commands)
		fmt.Fprintf(m.out, "}\n")
		fmt.Fprintf(m.out, "complete -F _cerberus_completion cerberus\n")
	case "zsh":
		fmt.Fprintf(m.out, "#compdef cerberus\n")
		fmt.Fprintf(m.out, "# Add to ~/.zshrc: source <(cerberus completion zsh)\n")
		fmt.Fprintf(m.out, "_cerberus() {\n")
		fmt.Fprintf(m.out, "  _arguments '1: :(%s)'\n", commands)
		fmt.Fprintf(m.out, "}\n")
	case "fish":
		fmt.Fprintf(m.out, "# Fish completion for cerberus\n")
		fmt.Fprintf(m.out, "complete -c cerberus -f -a '%s'\n", commands)
	default:
		return errors.New(cerberus.ErrCodeInvalidConfig, fmt.Sprintf("unsupported shell: %s", shell))
	}
	return nil
}

var commandNames = []string{"check", "keys", "get", "rules", "classify", "export", "audit", "info", "completion"}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
