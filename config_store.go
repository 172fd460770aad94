// config_store.go: Path-keyed Configuration Store
//
// A flat mapping from configuration path keys ("clamd.socket",
// "filesystem.root") to string values. The parser is the only writer; once
// the owning Configuration is published the store is read-only and may be
// shared by every goroutine without synchronization.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cerberus

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agilira/go-errors"
)

// KeySeparator joins element names and the attribute name into a store key
const KeySeparator = "."

// Store is the path-keyed configuration store
type Store struct {
	values map[string]string
}

// NewStore creates an empty configuration store
func NewStore() *Store {
	return &Store{values: make(map[string]string)}
}

// set stores value under key. It returns the value it replaced and whether
// there was one.
func (s *Store) set(key, value string) (previous string, replaced bool) {
	previous, replaced = s.values[key]
	s.values[key] = value
	return previous, replaced
}

// Get returns the value stored under key. An empty value with ok == true is
// a present-but-empty setting, distinct from an absent key.
func (s *Store) Get(key string) (value string, ok bool) {
	if s == nil {
		return "", false
	}
	value, ok = s.values[key]
	return value, ok
}

// GetDefault returns the value under key or def when the key is absent
func (s *Store) GetDefault(key, def string) string {
	if v, ok := s.Get(key); ok {
		return v
	}
	return def
}

// Has reports whether key is present
func (s *Store) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Len returns the number of keys
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.values)
}

// Keys returns every key in lexicographic order
func (s *Store) Keys() []string {
	return s.KeysWithPrefix("")
}

// KeysWithPrefix returns the keys starting with prefix, sorted
func (s *Store) KeysWithPrefix(prefix string) []string {
	if s == nil {
		return nil
	}
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Range calls fn for every entry in key order until fn returns false
func (s *Store) Range(fn func(key, value string) bool) {
	for _, k := range s.Keys() {
		if !fn(k, s.values[k]) {
			return
		}
	}
}

// Map returns a copy of the store contents
func (s *Store) Map() map[string]string {
	out := make(map[string]string, s.Len())
	if s == nil {
		return out
	}
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Typed readers. Each returns (zero, false, nil) for an absent key and a
// CERBERUS_INVALID_VALUE error when the stored text does not convert.

// GetBool reads a boolean. Accepts yes/no, true/false, on/off and 1/0.
func (s *Store) GetBool(key string) (value bool, ok bool, err error) {
	raw, ok := s.Get(key)
	if !ok {
		return false, false, nil
	}
	value, err = parseBoolValue(raw)
	if err != nil {
		return false, true, invalidValue(key, raw, err)
	}
	return value, true, nil
}

// GetInt64 reads a signed decimal integer
func (s *Store) GetInt64(key string) (value int64, ok bool, err error) {
	raw, ok := s.Get(key)
	if !ok {
		return 0, false, nil
	}
	value, err = strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, true, invalidValue(key, raw, err)
	}
	return value, true, nil
}

// GetDuration reads a Go duration ("90s", "3h") or a bare integer in milliseconds
func (s *Store) GetDuration(key string) (value time.Duration, ok bool, err error) {
	raw, ok := s.Get(key)
	if !ok {
		return 0, false, nil
	}
	value, err = parseDurationValue(raw)
	if err != nil {
		return 0, true, invalidValue(key, raw, err)
	}
	return value, true, nil
}

// GetSize reads a byte size with an optional K, M or G suffix (powers of 1024)
func (s *Store) GetSize(key string) (value int64, ok bool, err error) {
	raw, ok := s.Get(key)
	if !ok {
		return 0, false, nil
	}
	value, err = parseSizeValue(raw)
	if err != nil {
		return 0, true, invalidValue(key, raw, err)
	}
	return value, true, nil
}

func invalidValue(key, raw string, cause error) error {
	return errors.Wrap(cause, ErrCodeInvalidValue, "invalid value for key '"+key+"'").
		WithContext("key", key).
		WithContext("value", raw)
}

func parseBoolValue(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "true", "on", "1":
		return true, nil
	case "no", "false", "off", "0":
		return false, nil
	default:
		return false, errors.New(ErrCodeInvalidValue, "not a boolean: '"+raw+"'")
	}
}

func parseDurationValue(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if ms < 0 {
			return 0, errors.New(ErrCodeInvalidValue, "negative duration: '"+raw+"'")
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.New(ErrCodeInvalidValue, "negative duration: '"+raw+"'")
	}
	return d, nil
}

func parseSizeValue(raw string) (int64, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.TrimSuffix(s, "B")
	multiplier := int64(1)
	if n := len(s); n > 0 {
		switch s[n-1] {
		case 'K':
			multiplier = 1 << 10
		case 'M':
			multiplier = 1 << 20
		case 'G':
			multiplier = 1 << 30
		}
		if multiplier != 1 {
			s = s[:n-1]
		}
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New(ErrCodeInvalidValue, "negative size: '"+raw+"'")
	}
	if n > (1<<63-1)/multiplier {
		return 0, errors.New(ErrCodeInvalidValue, "size overflows int64: '"+raw+"'")
	}
	return n * multiplier, nil
}
