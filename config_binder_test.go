// config_binder_test.go: Tests for typed configuration binding
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cerberus

import (
	"testing"
	"time"
)

func TestConfigBinder_BasicTypes(t *testing.T) {
	store := newTestStore(
		"clamd.socket", "/run/clamd.sock",
		"clamd.port", "3310",
		"cache.entries", "4096",
		"filesystem.public", "yes",
		"clamd.timeout", "45s",
		"file.maximal-size", "10M",
	)

	var (
		socket  string
		port    int
		entries int64
		public  bool
		timeout time.Duration
		maxSize int64
		host    string
		expire  time.Duration
	)

	binder := NewConfigBinder(store).
		BindString(&socket, "clamd.socket").
		BindInt(&port, "clamd.port").
		BindInt64(&entries, "cache.entries").
		BindBool(&public, "filesystem.public").
		BindDuration(&timeout, "clamd.timeout").
		BindSize(&maxSize, "file.maximal-size").
		BindString(&host, "clamd.host", "localhost").
		BindDuration(&expire, "cache.expire", 3*time.Hour)

	if err := binder.Apply(); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if socket != "/run/clamd.sock" || port != 3310 || entries != 4096 || !public {
		t.Errorf("bound values: %q %d %d %v", socket, port, entries, public)
	}
	if timeout != 45*time.Second || maxSize != 10<<20 {
		t.Errorf("timeout=%v maxSize=%d", timeout, maxSize)
	}
	if host != "localhost" || expire != 3*time.Hour {
		t.Errorf("defaults not applied: host=%q expire=%v", host, expire)
	}

	if !binder.FromStore("clamd.socket") || binder.FromStore("clamd.host") {
		t.Error("FromStore does not distinguish stored keys from defaults")
	}
}

func TestConfigBinder_ZeroDefaults(t *testing.T) {
	var (
		s string
		i int
		b bool
		d time.Duration
		z int64
	)
	err := NewConfigBinder(nil).
		BindString(&s, "a").
		BindInt(&i, "b").
		BindBool(&b, "c").
		BindDuration(&d, "d").
		BindSize(&z, "e").
		Apply()
	if err != nil {
		t.Fatalf("Apply on nil store: %v", err)
	}
	if s != "" || i != 0 || b || d != 0 || z != 0 {
		t.Error("zero defaults not applied")
	}
}

func TestConfigBinder_InvalidValue(t *testing.T) {
	tests := []struct {
		name string
		bind func(*ConfigBinder) *ConfigBinder
	}{
		{"int", func(cb *ConfigBinder) *ConfigBinder { var v int; return cb.BindInt(&v, "k") }},
		{"int64", func(cb *ConfigBinder) *ConfigBinder { var v int64; return cb.BindInt64(&v, "k") }},
		{"bool", func(cb *ConfigBinder) *ConfigBinder { var v bool; return cb.BindBool(&v, "k") }},
		{"duration", func(cb *ConfigBinder) *ConfigBinder { var v time.Duration; return cb.BindDuration(&v, "k") }},
		{"size", func(cb *ConfigBinder) *ConfigBinder { var v int64; return cb.BindSize(&v, "k") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bind(NewConfigBinder(newTestStore("k", "not-a-value"))).Apply()
			if ErrorCode(err) != ErrCodeInvalidValue {
				t.Errorf("expected %s, got %v", ErrCodeInvalidValue, err)
			}
		})
	}
}
