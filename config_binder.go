// config_binder.go: Typed binding of store keys to Go variables
//
// The binder reads the frozen Store and writes each bound key into a typed
// target, falling back to a default when the key is absent. Bindings are
// declared fluently and resolved in one pass by Apply.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cerberus

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unsafe"

	"github.com/agilira/go-errors"
)

type bindKind uint8

const (
	bindString bindKind = iota
	bindInt
	bindInt64
	bindBool
	bindDuration
	bindSize
)

// binding is one key-to-variable association. target is created from a
// typed pointer in the Bind* methods and only dereferenced as that type.
type binding struct {
	target   unsafe.Pointer
	key      string
	defValue string
	kind     bindKind
}

// ConfigBinder binds Store keys to variables with a fluent API
type ConfigBinder struct {
	bindings []binding
	store    *Store
	bound    map[string]bool
}

// NewConfigBinder creates a binder reading from store. A nil store binds
// every target to its default.
func NewConfigBinder(store *Store) *ConfigBinder {
	return &ConfigBinder{
		bindings: make([]binding, 0, 24),
		store:    store,
		bound:    make(map[string]bool),
	}
}

func (cb *ConfigBinder) add(target unsafe.Pointer, key, def string, kind bindKind) *ConfigBinder {
	cb.bindings = append(cb.bindings, binding{target: target, key: key, defValue: def, kind: kind})
	return cb
}

// BindString binds a string value
func (cb *ConfigBinder) BindString(target *string, key string, defaultValue ...string) *ConfigBinder {
	def := ""
	if len(defaultValue) > 0 {
		def = defaultValue[0]
	}
	return cb.add(unsafe.Pointer(target), key, def, bindString) // #nosec G103 -- typed pointer, see binding
}

// BindInt binds an int value
func (cb *ConfigBinder) BindInt(target *int, key string, defaultValue ...int) *ConfigBinder {
	def := "0"
	if len(defaultValue) > 0 {
		def = strconv.Itoa(defaultValue[0])
	}
	return cb.add(unsafe.Pointer(target), key, def, bindInt) // #nosec G103 -- typed pointer, see binding
}

// BindInt64 binds an int64 value
func (cb *ConfigBinder) BindInt64(target *int64, key string, defaultValue ...int64) *ConfigBinder {
	def := "0"
	if len(defaultValue) > 0 {
		def = strconv.FormatInt(defaultValue[0], 10)
	}
	return cb.add(unsafe.Pointer(target), key, def, bindInt64) // #nosec G103 -- typed pointer, see binding
}

// BindBool binds a boolean (yes/no, true/false, on/off, 1/0)
func (cb *ConfigBinder) BindBool(target *bool, key string, defaultValue ...bool) *ConfigBinder {
	def := "false"
	if len(defaultValue) > 0 {
		def = strconv.FormatBool(defaultValue[0])
	}
	return cb.add(unsafe.Pointer(target), key, def, bindBool) // #nosec G103 -- typed pointer, see binding
}

// BindDuration binds a duration; bare integers are milliseconds
func (cb *ConfigBinder) BindDuration(target *time.Duration, key string, defaultValue ...time.Duration) *ConfigBinder {
	def := "0s"
	if len(defaultValue) > 0 {
		def = defaultValue[0].String()
	}
	return cb.add(unsafe.Pointer(target), key, def, bindDuration) // #nosec G103 -- typed pointer, see binding
}

// BindSize binds a byte size with an optional K, M or G suffix
func (cb *ConfigBinder) BindSize(target *int64, key string, defaultValue ...int64) *ConfigBinder {
	def := "0"
	if len(defaultValue) > 0 {
		def = strconv.FormatInt(defaultValue[0], 10)
	}
	return cb.add(unsafe.Pointer(target), key, def, bindSize) // #nosec G103 -- typed pointer, see binding
}

// Apply resolves every binding. It stops at the first key whose stored
// value does not convert.
func (cb *ConfigBinder) Apply() error {
	for _, b := range cb.bindings {
		raw, present := cb.store.Get(b.key)
		if !present {
			raw = b.defValue
		}
		if err := applyBinding(b, raw); err != nil {
			return errors.Wrap(err, ErrCodeInvalidValue, "failed to bind key '"+b.key+"'").
				WithContext("key", b.key).
				WithContext("value", raw)
		}
		cb.bound[b.key] = present
	}
	return nil
}

// FromStore reports, after Apply, whether key came from the store rather
// than from its default.
func (cb *ConfigBinder) FromStore(key string) bool {
	return cb.bound[key]
}

func applyBinding(b binding, raw string) error {
	switch b.kind {
	case bindString:
		*(*string)(b.target) = raw
	case bindInt:
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		*(*int)(b.target) = v
	case bindInt64:
		v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return err
		}
		*(*int64)(b.target) = v
	case bindBool:
		v, err := parseBoolValue(raw)
		if err != nil {
			return err
		}
		*(*bool)(b.target) = v
	case bindDuration:
		v, err := parseDurationValue(raw)
		if err != nil {
			return err
		}
		*(*time.Duration)(b.target) = v
	case bindSize:
		v, err := parseSizeValue(raw)
		if err != nil {
			return err
		}
		*(*int64)(b.target) = v
	default:
		return errors.New(ErrCodeInvalidConfig, fmt.Sprintf("unsupported binding kind: %d", b.kind))
	}
	return nil
}
