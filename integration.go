// integration.go: Daemon bootstrap combining flags, document and environment
//
// BootstrapManager owns the daemon's command-line flags (flash-flags, with
// CERBERUSD_* environment fallbacks) and turns them into a parsed
// Configuration plus validated GatewaySettings. Precedence for settings is
// flag > CERBERUS_* environment > document > default.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cerberus

import (
	goerrors "errors"
	"fmt"
	"os"
	"strings"
	"time"

	flashflags "github.com/agilira/flash-flags"
	"github.com/agilira/go-errors"
)

// DefaultConfigPath is where the daemon looks for its document by default
const DefaultConfigPath = "/etc/cerberus/cerberus.xml"

// ErrHelpRequested is returned by Parse when --help or -h is present
var ErrHelpRequested = goerrors.New("help requested")

// Daemon flag names
const (
	FlagConfig      = "config"
	FlagLogLevel    = "log-level"
	FlagLogFormat   = "log-format"
	FlagLogFile     = "log-file"
	FlagAuditOutput = "audit-output"
	FlagStatsEvery  = "stats-every"
	FlagCheck       = "check"
)

// BootstrapManager parses daemon flags and loads the configuration
type BootstrapManager struct {
	flags   *flashflags.FlagSet
	appName string
	parsed  bool
}

// NewBootstrapManager creates a manager with the daemon flag set registered
func NewBootstrapManager(appName string) *BootstrapManager {
	bm := &BootstrapManager{
		flags:   flashflags.New(appName),
		appName: appName,
	}
	bm.flags.String(FlagConfig, DefaultConfigPath, "Configuration document")
	bm.flags.String(FlagLogLevel, "", "Override log.level")
	bm.flags.String(FlagLogFormat, "", "Override log.format (console, json, text)")
	bm.flags.String(FlagLogFile, "", "Log to this file (implies log.method=file)")
	bm.flags.String(FlagAuditOutput, "", "Enable the audit trail at this path (.db or .jsonl)")
	bm.flags.Duration(FlagStatsEvery, 0, "Override stats.every")
	bm.flags.Bool(FlagCheck, false, "Load and validate the configuration, then exit")
	return bm
}

// SetDescription sets the help description
func (bm *BootstrapManager) SetDescription(description string) *BootstrapManager {
	bm.flags.SetDescription(description)
	return bm
}

// SetVersion sets the help version
func (bm *BootstrapManager) SetVersion(version string) *BootstrapManager {
	bm.flags.SetVersion(version)
	return bm
}

// Parse parses args. Flags not given fall back to <APPNAME>_<FLAG> variables.
func (bm *BootstrapManager) Parse(args []string) error {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return ErrHelpRequested
		}
	}
	bm.flags.SetEnvPrefix(strings.ToUpper(bm.appName))
	if err := bm.flags.Parse(args); err != nil {
		return errors.Wrap(err, ErrCodeInvalidConfig, "failed to parse command-line flags")
	}
	bm.parsed = true
	return nil
}

// ParseArgsOrExit parses os.Args[1:], printing usage and exiting on help or error
func (bm *BootstrapManager) ParseArgsOrExit() {
	if err := bm.Parse(os.Args[1:]); err != nil {
		if goerrors.Is(err, ErrHelpRequested) {
			bm.PrintUsage()
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		bm.PrintUsage()
		os.Exit(2)
	}
}

// PrintUsage prints help for every flag
func (bm *BootstrapManager) PrintUsage() {
	bm.flags.PrintHelp()
}

// ConfigPath returns the configuration document path
func (bm *BootstrapManager) ConfigPath() string {
	return bm.flags.GetString(FlagConfig)
}

// CheckOnly reports whether --check was given
func (bm *BootstrapManager) CheckOnly() bool {
	return bm.flags.GetBool(FlagCheck)
}

// BoundFlags maps every flag name to its environment variable
func (bm *BootstrapManager) BoundFlags() map[string]string {
	out := make(map[string]string)
	bm.flags.VisitAll(func(flag *flashflags.Flag) {
		out[flag.Name()] = bm.flagToEnvKey(flag.Name())
	})
	return out
}

func (bm *BootstrapManager) flagToEnvKey(flagName string) string {
	return strings.ToUpper(bm.appName + "_" + strings.ReplaceAll(flagName, "-", "_"))
}

// applyFlagOverrides copies every non-empty flag onto settings and returns
// the store keys it overrode
func (bm *BootstrapManager) applyFlagOverrides(s *GatewaySettings) []string {
	var keys []string
	if v := bm.flags.GetString(FlagLogLevel); v != "" {
		s.LogLevel = v
		keys = append(keys, KeyLogLevel)
	}
	if v := bm.flags.GetString(FlagLogFormat); v != "" {
		s.LogFormat = v
		keys = append(keys, KeyLogFormat)
	}
	if v := bm.flags.GetString(FlagLogFile); v != "" {
		s.LogMethod, s.LogFile = "file", v
		keys = append(keys, KeyLogMethod, KeyLogFile)
	}
	if v := bm.flags.GetString(FlagAuditOutput); v != "" {
		s.AuditEnabled, s.AuditOutput = true, v
		keys = append(keys, KeyAuditEnabled, KeyAuditOutput)
	}
	if v := bm.flags.GetDuration(FlagStatsEvery); v > 0 {
		s.StatsEvery = v
		keys = append(keys, KeyStatsEvery)
	}
	return keys
}

// Bootstrap is the outcome of loading the daemon configuration
type Bootstrap struct {
	Config         *Configuration
	Report         *ParseReport
	Settings       GatewaySettings
	Validation     ValidationResult
	EnvOverrides   []string
	FlagOverrides  []string
	LoadedDuration time.Duration
}

// Load parses the configuration document, binds and overrides the settings
// and validates them. Open, parse and schema errors are returned untouched so
// callers can tell them apart; invalid settings fail with
// CERBERUS_INVALID_SETTINGS.
func (bm *BootstrapManager) Load() (*Bootstrap, error) {
	if !bm.parsed {
		return nil, errors.New(ErrCodeInvalidConfig, "flags must be parsed before loading")
	}
	start := time.Now()

	cfg, report, err := ParseFile(bm.ConfigPath(), GatewayParserOptions())
	if err != nil {
		return nil, err
	}

	settings, err := SettingsFromConfiguration(cfg)
	if err != nil {
		return nil, err
	}
	envKeys, err := ApplyEnvOverrides(&settings)
	if err != nil {
		return nil, err
	}
	flagKeys := bm.applyFlagOverrides(&settings)

	b := &Bootstrap{
		Config:         cfg,
		Report:         report,
		Settings:       settings,
		Validation:     settings.ValidateDetailed(),
		EnvOverrides:   envKeys,
		FlagOverrides:  flagKeys,
		LoadedDuration: time.Since(start),
	}
	if !b.Validation.Valid {
		return b, errors.New(ErrCodeInvalidSettings, "gateway settings are invalid").
			WithContext("errors", strings.Join(b.Validation.Errors, "; "))
	}
	return b, nil
}

// OpenAudit creates the audit trail described by the settings and records
// the load that produced them. The audit location lives in the document, so
// the load is recorded after the fact with the overwrites listed in its
// context.
func (b *Bootstrap) OpenAudit() (*AuditLogger, error) {
	audit, err := NewAuditLogger(b.Settings.AuditConfig())
	if err != nil {
		return nil, err
	}
	audit.LogConfigLoaded(b.Report)
	return audit, nil
}

// Publish installs the configuration in holder, recording it in audit
func (b *Bootstrap) Publish(holder *ConfigHolder, audit *AuditLogger) error {
	holder.SetAuditLogger(audit)
	return holder.Publish(b.Config)
}
