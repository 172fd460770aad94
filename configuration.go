// configuration.go: Immutable configuration snapshot and one-time publication
//
// A Configuration is produced only by a successful parse. It is published
// exactly once per process; readers either wait on the publication barrier
// or load the current pointer, so nobody ever observes a half-built store.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cerberus

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/agilira/go-errors"
)

// Configuration is the frozen result of parsing one document
type Configuration struct {
	store      *Store
	extensions *ExtensionMap
	source     string
	loadedAt   time.Time
}

// Store returns the path-keyed configuration store
func (c *Configuration) Store() *Store {
	if c == nil {
		return nil
	}
	return c.store
}

// Extensions returns the extension classification map
func (c *Configuration) Extensions() *ExtensionMap {
	if c == nil {
		return nil
	}
	return c.extensions
}

// Source returns the name of the document the configuration came from
func (c *Configuration) Source() string {
	if c == nil {
		return ""
	}
	return c.source
}

// LoadedAt returns when parsing completed
func (c *Configuration) LoadedAt() time.Time {
	if c == nil {
		return time.Time{}
	}
	return c.loadedAt
}

// Classify is shorthand for Extensions().ClassifyPath(path)
func (c *Configuration) Classify(path string) ACLItem {
	return c.Extensions().ClassifyPath(path)
}

// ConfigHolder publishes one Configuration exactly once.
// The zero value is not usable; use NewConfigHolder.
type ConfigHolder struct {
	current   atomic.Pointer[Configuration]
	published chan struct{}
	audit     atomic.Pointer[AuditLogger]
}

// NewConfigHolder creates an empty holder
func NewConfigHolder() *ConfigHolder {
	return &ConfigHolder{published: make(chan struct{})}
}

// SetAuditLogger attaches an audit trail that records the publication
func (h *ConfigHolder) SetAuditLogger(audit *AuditLogger) {
	h.audit.Store(audit)
}

// Publish installs cfg. Only the first call succeeds; later calls fail with
// CERBERUS_ALREADY_PUBLISHED since the configuration is never reloaded.
func (h *ConfigHolder) Publish(cfg *Configuration) error {
	if cfg == nil {
		return errors.New(ErrCodeInvalidConfig, "cannot publish a nil configuration")
	}
	if !h.current.CompareAndSwap(nil, cfg) {
		return errors.New(ErrCodeAlreadyPublished, "configuration already published").
			WithContext("source", h.current.Load().Source())
	}
	close(h.published)
	h.audit.Load().LogConfigPublished(cfg)
	return nil
}

// Current returns the published configuration, nil before publication
func (h *ConfigHolder) Current() *Configuration {
	return h.current.Load()
}

// Loaded reports whether a configuration has been published
func (h *ConfigHolder) Loaded() bool {
	return h.current.Load() != nil
}

// WaitPublished blocks until a configuration is published or ctx is done
func (h *ConfigHolder) WaitPublished(ctx context.Context) (*Configuration, error) {
	select {
	case <-h.published:
		return h.current.Load(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var defaultHolder = NewConfigHolder()

// Publish installs the process-wide configuration
func Publish(cfg *Configuration) error { return defaultHolder.Publish(cfg) }

// Current returns the process-wide configuration, nil before publication
func Current() *Configuration { return defaultHolder.Current() }

// Loaded reports whether the process-wide configuration has been published
func Loaded() bool { return defaultHolder.Loaded() }

// WaitPublished blocks until the process-wide configuration is published
func WaitPublished(ctx context.Context) (*Configuration, error) {
	return defaultHolder.WaitPublished(ctx)
}

// SetAuditLogger attaches an audit trail to the process-wide holder
func SetAuditLogger(audit *AuditLogger) { defaultHolder.SetAuditLogger(audit) }
