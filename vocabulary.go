// vocabulary.go: Recognized configuration elements and attributes
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cerberus

import (
	"sort"
	"strings"
)

// DefaultRuleElement is the element name that carries extension rules
const DefaultRuleElement = "extension"

// Vocabulary lists the attributes the parser records for each element path.
// Element paths exclude the document root ("clamd", "log"); the empty path
// addresses attributes of the root element itself.
//
// A nil *Vocabulary accepts everything.
type Vocabulary struct {
	elements map[string]map[string]struct{}
}

// NewVocabulary creates an empty vocabulary
func NewVocabulary() *Vocabulary {
	return &Vocabulary{elements: make(map[string]map[string]struct{})}
}

// Allow registers attributes for an element path and returns the vocabulary
// for chaining
func (v *Vocabulary) Allow(elementPath string, attrs ...string) *Vocabulary {
	set, ok := v.elements[elementPath]
	if !ok {
		set = make(map[string]struct{}, len(attrs))
		v.elements[elementPath] = set
	}
	for _, a := range attrs {
		set[a] = struct{}{}
	}
	return v
}

// Allows reports whether attr is recorded on elements at elementPath
func (v *Vocabulary) Allows(elementPath, attr string) bool {
	if v == nil {
		return true
	}
	_, ok := v.elements[elementPath][attr]
	return ok
}

// Keys returns every store key the vocabulary can produce, sorted
func (v *Vocabulary) Keys() []string {
	if v == nil {
		return nil
	}
	var keys []string
	for path, attrs := range v.elements {
		for a := range attrs {
			keys = append(keys, joinKey(path, a))
		}
	}
	sort.Strings(keys)
	return keys
}

// GatewayVocabulary is the vocabulary of the scanning gateway configuration
// file. Unknown attributes are skipped and reported, never stored.
func GatewayVocabulary() *Vocabulary {
	return NewVocabulary().
		Allow("clamd", "socket", "host", "port", "timeout", "check").
		Allow("filesystem", "root", "mountpoint", "public", "readonly", "nonempty").
		Allow("cache", "entries", "expire").
		Allow("file", "maximal-size").
		Allow("log", "method", "file", "level", "format", "verbose").
		Allow("stats", "atexit", "every").
		Allow("audit", "enabled", "output").
		Allow("mail", "server", "to", "from", "subject")
}

func joinKey(elementPath, attr string) string {
	if elementPath == "" {
		return attr
	}
	return strings.Join([]string{elementPath, attr}, KeySeparator)
}
