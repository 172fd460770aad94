// main.go: Cerberus administrative command-line tool
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"os"

	"github.com/agilira/cerberus"
	"github.com/agilira/cerberus/cmd/cli"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	manager := cli.NewManager()

	// CERBERUS_AUDIT_OUTPUT attaches a trail to every command
	if output := os.Getenv(cerberus.EnvVarForKey(cerberus.KeyAuditOutput)); output != "" {
		cfg := cerberus.DefaultAuditConfig()
		cfg.Output = output
		audit, err := cerberus.NewAuditLogger(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		defer func() { _ = audit.Close() }()
		manager.WithAudit(audit)
	}

	if err := manager.Run(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return 0
}

// exitCode maps ingestion failures to distinct statuses
func exitCode(err error) int {
	switch {
	case cerberus.IsOpenError(err):
		return 3
	case cerberus.IsParseError(err), cerberus.IsSchemaError(err):
		return 4
	case cerberus.ErrorCode(err) == cerberus.ErrCodeInvalidSettings:
		return 5
	default:
		return 1
	}
}
