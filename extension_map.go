// extension_map.go: Extension Classification Map
//
// Maps normalized file extensions to their ACL classification. Populated once
// by the configuration parser and read-only afterwards, so lookups need no
// locking once the owning Configuration has been published.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cerberus

import (
	"path/filepath"
	"sort"
)

// ExtensionRule pairs a normalized extension with its classification
type ExtensionRule struct {
	Extension string  `json:"extension" yaml:"extension"`
	Class     ACLItem `json:"class" yaml:"class"`
}

// ExtensionMap classifies files by extension
type ExtensionMap struct {
	rules map[string]ACLItem
}

// NewExtensionMap creates an empty classification map
func NewExtensionMap() *ExtensionMap {
	return &ExtensionMap{rules: make(map[string]ACLItem)}
}

// set stores a rule (last-seen-wins). It returns the class it replaced and
// whether an earlier rule existed for the same normalized extension.
func (m *ExtensionMap) set(ext string, class ACLItem) (previous ACLItem, replaced bool) {
	key := NormalizeExtension(ext)
	previous, replaced = m.rules[key]
	m.rules[key] = class
	return previous, replaced
}

// Lookup returns the classification of ext, Unclassified when no rule exists
func (m *ExtensionMap) Lookup(ext string) ACLItem {
	if m == nil {
		return Unclassified
	}
	return m.rules[NormalizeExtension(ext)]
}

// Has reports whether an explicit rule exists for ext
func (m *ExtensionMap) Has(ext string) bool {
	if m == nil {
		return false
	}
	_, ok := m.rules[NormalizeExtension(ext)]
	return ok
}

// ClassifyPath classifies a file by the extension of its base name.
// Files without an extension are Unclassified.
func (m *ExtensionMap) ClassifyPath(path string) ACLItem {
	ext := filepath.Ext(filepath.Base(path))
	if ext == "" {
		return Unclassified
	}
	return m.Lookup(ext)
}

// Len returns the number of stored rules
func (m *ExtensionMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.rules)
}

// Count returns how many extensions carry the given classification
func (m *ExtensionMap) Count(class ACLItem) int {
	if m == nil {
		return 0
	}
	n := 0
	for _, c := range m.rules {
		if c == class {
			n++
		}
	}
	return n
}

// Rules returns all rules sorted by extension
func (m *ExtensionMap) Rules() []ExtensionRule {
	if m == nil {
		return nil
	}
	rules := make([]ExtensionRule, 0, len(m.rules))
	for ext, class := range m.rules {
		rules = append(rules, ExtensionRule{Extension: ext, Class: class})
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Extension < rules[j].Extension })
	return rules
}
