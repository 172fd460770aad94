// parser_xml.go: Configuration document parser
//
// configHandler is the ElementHandler that turns parse events into a Store
// and an ExtensionMap. Parse and ParseFile compose it with a Source and a
// StreamParser and hand back an immutable Configuration.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cerberus

import (
	"io"
	"strings"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
)

// ParserOptions tunes a parse run. The zero value is usable: every attribute
// is recorded, rules use the "extension" element and nesting is limited to
// DefaultMaxDepth.
type ParserOptions struct {
	// Vocabulary restricts which attributes reach the store (nil: all)
	Vocabulary *Vocabulary

	// RuleElement names the extension rule element (default "extension")
	RuleElement string

	// RootElement, when set, is the only accepted document root name
	RootElement string

	// MaxDepth limits element nesting (default DefaultMaxDepth)
	MaxDepth int

	// Audit receives load, reject, overwrite and override events
	Audit *AuditLogger
}

// GatewayParserOptions returns the options used by the gateway daemon
func GatewayParserOptions() ParserOptions {
	return ParserOptions{
		Vocabulary:  GatewayVocabulary(),
		RuleElement: DefaultRuleElement,
		MaxDepth:    DefaultMaxDepth,
	}
}

func (o ParserOptions) ruleElement() string {
	if o.RuleElement == "" {
		return DefaultRuleElement
	}
	return o.RuleElement
}

// ParseReport summarizes one successful parse run
type ParseReport struct {
	Source          string        `json:"source" yaml:"source"`
	Elements        int           `json:"elements" yaml:"elements"`
	KeysWritten     int           `json:"keys_written" yaml:"keys_written"`
	RulesApplied    int           `json:"rules_applied" yaml:"rules_applied"`
	OverwrittenKeys []string      `json:"overwritten_keys,omitempty" yaml:"overwritten_keys,omitempty"`
	OverriddenRules []string      `json:"overridden_rules,omitempty" yaml:"overridden_rules,omitempty"`
	Ignored         int           `json:"ignored" yaml:"ignored"`
	Duration        time.Duration `json:"duration" yaml:"duration"`
}

type configHandler struct {
	opts    ParserOptions
	rule    string
	store   *Store
	exts    *ExtensionMap
	report  *ParseReport
	pending []func()
}

func newConfigHandler(opts ParserOptions, source string) *configHandler {
	return &configHandler{
		opts:   opts,
		rule:   opts.ruleElement(),
		store:  NewStore(),
		exts:   NewExtensionMap(),
		report: &ParseReport{Source: source},
	}
}

func (h *configHandler) StartElement(ctx *ParserContext, name string, attrs []Attribute) error {
	h.report.Elements++

	if ctx.Depth() == 1 && h.opts.RootElement != "" && name != h.opts.RootElement {
		return h.schemaError(ctx, "unexpected document root", "expected", h.opts.RootElement)
	}

	if name == h.rule {
		return h.applyRule(ctx, attrs)
	}

	elementPath := ctx.KeyPath()
	for _, a := range attrs {
		if a.Space != "" || a.Name == "xmlns" || !h.opts.Vocabulary.Allows(elementPath, a.Name) {
			h.report.Ignored++
			continue
		}
		key := joinKey(elementPath, a.Name)
		previous, replaced := h.store.set(key, a.Value)
		h.report.KeysWritten++
		if replaced {
			h.report.OverwrittenKeys = append(h.report.OverwrittenKeys, key)
			value := a.Value
			h.deferAudit(func() { h.opts.Audit.LogKeyOverwritten(ctx.Source(), key, previous, value) })
		}
	}
	return nil
}

// applyRule records one extension rule; "name" and "action" are mandatory
func (h *configHandler) applyRule(ctx *ParserContext, attrs []Attribute) error {
	var (
		ext, action        string
		hasName, hasAction bool
	)
	for _, a := range attrs {
		if a.Space != "" {
			continue
		}
		switch a.Name {
		case "name":
			ext, hasName = a.Value, true
		case "action":
			action, hasAction = a.Value, true
		}
	}

	if !hasName || NormalizeExtension(ext) == "" {
		return h.schemaError(ctx, "extension rule without a name", "attribute", "name")
	}
	if !IsSingleSuffix(ext) {
		return h.schemaError(ctx, "extension rule name must be a single suffix", "attribute", "name", "extension", ext)
	}
	if !hasAction || strings.TrimSpace(action) == "" {
		return h.schemaError(ctx, "extension rule without an action", "attribute", "action", "extension", ext)
	}

	class, err := ParseACLItem(action)
	if err != nil {
		line, column := ctx.Position()
		return errors.Wrap(err, ErrCodeSchemaError, "invalid extension rule action").
			WithContext("source", ctx.Source()).
			WithContext("line", line).
			WithContext("column", column).
			WithContext("extension", ext).
			WithContext("action", action)
	}

	normalized := NormalizeExtension(ext)
	previous, replaced := h.exts.set(normalized, class)
	h.report.RulesApplied++
	if replaced {
		h.report.OverriddenRules = append(h.report.OverriddenRules, normalized)
		h.deferAudit(func() { h.opts.Audit.LogRuleOverridden(ctx.Source(), normalized, previous, class) })
	}
	return nil
}

func (h *configHandler) EndElement(*ParserContext, string) error { return nil }

// CharData is ignored: the format is attribute-only
func (h *configHandler) CharData(*ParserContext, []byte) error { return nil }

// deferAudit queues audit records until the whole document has been accepted
func (h *configHandler) deferAudit(fn func()) {
	if h.opts.Audit != nil {
		h.pending = append(h.pending, fn)
	}
}

func (h *configHandler) schemaError(ctx *ParserContext, msg string, extra ...interface{}) error {
	line, column := ctx.Position()
	err := errors.New(ErrCodeSchemaError, msg).
		WithContext("source", ctx.Source()).
		WithContext("element", ctx.Top()).
		WithContext("line", line).
		WithContext("column", column)
	for i := 0; i+1 < len(extra); i += 2 {
		if key, ok := extra[i].(string); ok {
			err = err.WithContext(key, extra[i+1])
		}
	}
	return err
}

// ParseSource parses one document from src. The caller keeps ownership of
// src and closes it. On any error the Configuration and report are nil and
// nothing partial escapes.
func ParseSource(src Source, opts ParserOptions) (*Configuration, *ParseReport, error) {
	if src == nil {
		return nil, nil, errors.New(ErrCodeInvalidConfig, "configuration source cannot be nil")
	}

	start := time.Now()
	handler := newConfigHandler(opts, src.Name())
	if err := NewStreamParser(opts.MaxDepth).Run(src, handler); err != nil {
		opts.Audit.LogConfigRejected(src.Name(), err)
		return nil, nil, err
	}

	for _, record := range handler.pending {
		record()
	}
	report := handler.report
	report.Duration = time.Since(start)
	opts.Audit.LogConfigLoaded(report)

	return &Configuration{
		store:      handler.store,
		extensions: handler.exts,
		source:     src.Name(),
		loadedAt:   timecache.CachedTime(),
	}, report, nil
}

// Parse parses a configuration document read from r
func Parse(r io.Reader, opts ParserOptions) (*Configuration, *ParseReport, error) {
	if r == nil {
		return nil, nil, errors.New(ErrCodeInvalidConfig, "configuration reader cannot be nil")
	}
	return ParseSource(NewReaderSource(r, ""), opts)
}

// ParseFile opens path, parses it and closes it again on every outcome
func ParseFile(path string, opts ParserOptions) (cfg *Configuration, report *ParseReport, err error) {
	src, err := OpenFileSource(path)
	if err != nil {
		opts.Audit.LogConfigRejected(path, err)
		return nil, nil, err
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil && err == nil {
			cfg, report = nil, nil
			err = errors.Wrap(closeErr, ErrCodeIOError, "failed to close configuration file").
				WithContext("path", path)
		}
	}()

	return ParseSource(src, opts)
}
