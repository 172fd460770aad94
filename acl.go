// acl.go: Access control classification of file extensions
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cerberus

import (
	"strings"

	"github.com/agilira/go-errors"
)

// ACLItem is the access-control classification of a file extension.
// The zero value is Unclassified, which is what every extension never
// mentioned by the configuration resolves to.
type ACLItem uint8

const (
	// Unclassified extensions are always handed to the scanning daemon
	Unclassified ACLItem = iota
	// Blacklisted extensions are denied without scanning
	Blacklisted
	// Whitelisted extensions are allowed without scanning
	Whitelisted
)

// String returns the canonical name of the classification
func (a ACLItem) String() string {
	switch a {
	case Unclassified:
		return "unclassified"
	case Blacklisted:
		return "blacklisted"
	case Whitelisted:
		return "whitelisted"
	default:
		return "unknown"
	}
}

// MarshalText renders the classification by name in JSON and YAML output
func (a ACLItem) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// ParseACLItem converts an extension rule action into a classification.
// Matching is case-insensitive; surrounding spaces are ignored.
func ParseACLItem(action string) (ACLItem, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "blacklist", "blacklisted", "deny":
		return Blacklisted, nil
	case "whitelist", "whitelisted", "allow":
		return Whitelisted, nil
	case "none", "unclassified", "scan":
		return Unclassified, nil
	default:
		return Unclassified, errors.New(ErrCodeInvalidValue, "unknown extension action '"+action+"'").
			WithContext("action", action)
	}
}

// NormalizeExtension returns the canonical form of a file extension:
// surrounding spaces trimmed, every leading dot removed, lowercased.
//
// The parser applies it when rules are stored and ExtensionMap applies it on
// every lookup. Any component classifying files outside this package must go
// through ExtensionMap (or this function) or its lookups will not match.
//
// Inner dots are kept ("tar.gz" stays "tar.gz"), but a path is classified by
// its last suffix only, so the parser rejects such names as rules.
func NormalizeExtension(ext string) string {
	ext = strings.TrimSpace(ext)
	ext = strings.TrimLeft(ext, ".")
	return strings.ToLower(ext)
}

// IsSingleSuffix reports whether ext normalizes to a non-empty extension
// without inner dots, the only form ClassifyPath can match
func IsSingleSuffix(ext string) bool {
	n := NormalizeExtension(ext)
	return n != "" && !strings.Contains(n, ".")
}
