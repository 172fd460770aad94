// settings.go: Typed gateway settings read from the configuration store
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cerberus

import (
	"time"

	"github.com/agilira/go-errors"
)

// Store keys understood by the gateway
const (
	KeyClamdSocket     = "clamd.socket"
	KeyClamdHost       = "clamd.host"
	KeyClamdPort       = "clamd.port"
	KeyClamdTimeout    = "clamd.timeout"
	KeyRoot            = "filesystem.root"
	KeyMountpoint      = "filesystem.mountpoint"
	KeyPublic          = "filesystem.public"
	KeyReadOnly        = "filesystem.readonly"
	KeyNonEmpty        = "filesystem.nonempty"
	KeyCacheEntries    = "cache.entries"
	KeyCacheExpire     = "cache.expire"
	KeyMaxFileSize     = "file.maximal-size"
	KeyLogMethod       = "log.method"
	KeyLogFile         = "log.file"
	KeyLogLevel        = "log.level"
	KeyLogFormat       = "log.format"
	KeyLogVerbose      = "log.verbose"
	KeyStatsAtExit     = "stats.atexit"
	KeyStatsEvery      = "stats.every"
	KeyAuditEnabled    = "audit.enabled"
	KeyAuditOutput     = "audit.output"
	DefaultClamdSocket = "/var/run/clamav/clamd.ctl"
)

// GatewaySettings is the typed view of the settings the gateway starts from
type GatewaySettings struct {
	ClamdSocket  string        `json:"clamd_socket" yaml:"clamd_socket" validate:"omitempty,abspath"`
	ClamdHost    string        `json:"clamd_host,omitempty" yaml:"clamd_host,omitempty" validate:"omitempty,hostname_rfc1123|ip"`
	ClamdPort    int           `json:"clamd_port" yaml:"clamd_port" validate:"gte=0,lte=65535"`
	ClamdTimeout time.Duration `json:"clamd_timeout" yaml:"clamd_timeout" validate:"gte=0"`

	Root       string `json:"root" yaml:"root" validate:"required,abspath"`
	Mountpoint string `json:"mountpoint" yaml:"mountpoint" validate:"required,abspath"`
	Public     bool   `json:"public" yaml:"public"`
	ReadOnly   bool   `json:"readonly" yaml:"readonly"`
	NonEmpty   bool   `json:"nonempty" yaml:"nonempty"`

	CacheEntries int           `json:"cache_entries" yaml:"cache_entries" validate:"gte=0"`
	CacheExpire  time.Duration `json:"cache_expire" yaml:"cache_expire" validate:"gte=0"`

	// MaxFileSize of 0 scans files of any size
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size" validate:"gte=0"`

	LogMethod string `json:"log_method" yaml:"log_method" validate:"oneof=stdout stderr file"`
	LogFile   string `json:"log_file,omitempty" yaml:"log_file,omitempty"`
	LogLevel  string `json:"log_level" yaml:"log_level" validate:"loglevel"`
	LogFormat string `json:"log_format" yaml:"log_format" validate:"logformat"`
	Verbose   bool   `json:"verbose" yaml:"verbose"`

	StatsAtExit bool          `json:"stats_atexit" yaml:"stats_atexit"`
	StatsEvery  time.Duration `json:"stats_every" yaml:"stats_every" validate:"gte=0"`

	AuditEnabled bool   `json:"audit_enabled" yaml:"audit_enabled"`
	AuditOutput  string `json:"audit_output,omitempty" yaml:"audit_output,omitempty"`
}

// DefaultGatewaySettings returns the settings used for keys a document omits
func DefaultGatewaySettings() GatewaySettings {
	return GatewaySettings{
		ClamdSocket:  DefaultClamdSocket,
		ClamdPort:    3310,
		ClamdTimeout: 30 * time.Second,
		CacheEntries: 16384,
		CacheExpire:  3 * time.Hour,
		LogMethod:    "stdout",
		LogLevel:     "info",
		LogFormat:    "console",
	}
}

// Bind registers every setting on binder with d as the defaults
func (s *GatewaySettings) Bind(binder *ConfigBinder, d GatewaySettings) *ConfigBinder {
	return binder.
		BindString(&s.ClamdSocket, KeyClamdSocket, d.ClamdSocket).
		BindString(&s.ClamdHost, KeyClamdHost, d.ClamdHost).
		BindInt(&s.ClamdPort, KeyClamdPort, d.ClamdPort).
		BindDuration(&s.ClamdTimeout, KeyClamdTimeout, d.ClamdTimeout).
		BindString(&s.Root, KeyRoot, d.Root).
		BindString(&s.Mountpoint, KeyMountpoint, d.Mountpoint).
		BindBool(&s.Public, KeyPublic, d.Public).
		BindBool(&s.ReadOnly, KeyReadOnly, d.ReadOnly).
		BindBool(&s.NonEmpty, KeyNonEmpty, d.NonEmpty).
		BindInt(&s.CacheEntries, KeyCacheEntries, d.CacheEntries).
		BindDuration(&s.CacheExpire, KeyCacheExpire, d.CacheExpire).
		BindSize(&s.MaxFileSize, KeyMaxFileSize, d.MaxFileSize).
		BindString(&s.LogMethod, KeyLogMethod, d.LogMethod).
		BindString(&s.LogFile, KeyLogFile, d.LogFile).
		BindString(&s.LogLevel, KeyLogLevel, d.LogLevel).
		BindString(&s.LogFormat, KeyLogFormat, d.LogFormat).
		BindBool(&s.Verbose, KeyLogVerbose, d.Verbose).
		BindBool(&s.StatsAtExit, KeyStatsAtExit, d.StatsAtExit).
		BindDuration(&s.StatsEvery, KeyStatsEvery, d.StatsEvery).
		BindBool(&s.AuditEnabled, KeyAuditEnabled, d.AuditEnabled).
		BindString(&s.AuditOutput, KeyAuditOutput, d.AuditOutput)
}

// SettingsFromConfiguration binds the gateway settings from cfg's store
func SettingsFromConfiguration(cfg *Configuration) (GatewaySettings, error) {
	if cfg == nil {
		return GatewaySettings{}, errors.New(ErrCodeInvalidConfig, "configuration cannot be nil")
	}
	return SettingsFromStore(cfg.Store())
}

// SettingsFromStore binds the gateway settings from store
func SettingsFromStore(store *Store) (GatewaySettings, error) {
	var s GatewaySettings
	if err := s.Bind(NewConfigBinder(store), DefaultGatewaySettings()).Apply(); err != nil {
		return GatewaySettings{}, err
	}
	return s, nil
}

// AuditConfig derives the audit trail configuration
func (s GatewaySettings) AuditConfig() AuditConfig {
	cfg := DefaultAuditConfig()
	cfg.Enabled = s.AuditEnabled
	cfg.Output = s.AuditOutput
	return cfg
}

// StatsReporterConfig derives the statistics reporter configuration
func (s GatewaySettings) StatsReporterConfig(audit *AuditLogger) StatsReporterConfig {
	return StatsReporterConfig{
		Interval: s.StatsEvery,
		AtExit:   s.StatsAtExit,
		Audit:    audit,
	}
}
