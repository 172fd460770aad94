// Package cerberus is the configuration and statistics core of an on-access
// virus scanning gateway.
//
// The gateway mirrors a directory tree and hands every file that is opened
// through it to a scanning daemon. Before it can serve a single open() it
// needs three things, all provided here: a configuration read once from an
// XML document, a classification of file extensions into ones that bypass
// scanning and ones that are denied outright, and a set of counters that
// describe what the gateway did.
//
// # Configuration Documents
//
// A document is an XML tree whose attributes become flat, dot-separated keys.
// The root element contributes nothing to the key, so
//
//	<clamfs>
//	  <clamd socket="/var/run/clamav/clamd.ctl" timeout="30s"/>
//	  <filesystem root="/srv/files" mountpoint="/clamfs/files"/>
//	  <extension name="exe" action="blacklist"/>
//	  <extension name="txt" action="whitelist"/>
//	</clamfs>
//
// yields the keys clamd.socket, clamd.timeout, filesystem.root and
// filesystem.mountpoint. An attribute on the root itself is stored under its
// bare name. When the same key or extension appears twice the later one
// wins; the ParseReport lists every such replacement and the audit trail
// records it.
//
// The extension element is not a key. Its name and action attributes form a
// rule in the ExtensionMap:
//
//	blacklist, blacklisted, deny   -> Blacklisted
//	whitelist, whitelisted, allow  -> Whitelisted
//	none, unclassified, scan       -> Unclassified
//
// Extensions are normalized with NormalizeExtension (leading dots removed,
// lowercased) both when stored and when looked up, so ".EXE" and "exe" are
// the same rule.
//
// # Parsing
//
// Parsing is a single pass over a streaming XML decoder. StreamParser enforces
// the document structure (one root, bounded depth, no stray text) and feeds
// start and end events to an ElementHandler; the configuration handler turns
// them into a Store and an ExtensionMap:
//
//	cfg, report, err := cerberus.ParseFile("/etc/cerberus/cerberus.xml", cerberus.GatewayParserOptions())
//	switch {
//	case cerberus.IsOpenError(err):   // cannot read the file
//	case cerberus.IsParseError(err):  // not well-formed XML
//	case cerberus.IsSchemaError(err): // well-formed but not a valid document
//	}
//
// A failed parse never returns a partial Configuration. Every failure of the
// three kinds above is fatal to gateway startup (see IsStartupFatal).
//
// The zero ParserOptions records every attribute. GatewayParserOptions
// restricts the store to the Vocabulary the gateway understands and counts
// the rest as ignored.
//
// # Publication
//
// A parsed Configuration is immutable. It is installed once per process with
// Publish and read from any goroutine with Current; WaitPublished blocks
// until it is available. A second Publish fails with
// CERBERUS_ALREADY_PUBLISHED.
//
// # Typed Settings
//
// GatewaySettings binds the keys the gateway needs into typed fields with
// ConfigBinder, overlays CERBERUS_* environment variables and validates the
// result with go-playground/validator. BootstrapManager adds the daemon's
// command-line flags on top (flag > environment > document > default).
//
// # Statistics
//
// Stats holds ten lock-free counters incremented from concurrent request
// handlers. DumpToLog writes them to a LogSink as twelve lines: a begin
// banner, one "label: value" line per counter in a fixed order and an end
// banner. StatsReporter dumps periodically, on request and at exit.
//
// # Audit Trail
//
// AuditLogger records loads, rejections, overwrites, publication and
// statistics dumps in a SQLite database or a JSON lines file. Each event
// carries a SHA-256 checksum that VerifyChecksum recomputes. A nil or
// disabled AuditLogger accepts every call and records nothing.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0
package cerberus
