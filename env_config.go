// env_config.go: Environment variable overrides for gateway settings
//
// Every gateway key can be overridden by CERBERUS_<KEY>, where <KEY> is the
// store key uppercased with dots and dashes turned into underscores
// (clamd.socket -> CERBERUS_CLAMD_SOCKET, file.maximal-size ->
// CERBERUS_FILE_MAXIMAL_SIZE). Overrides apply to the typed settings only;
// the parsed store stays exactly as the document defined it.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cerberus

import (
	"os"
	"sort"
	"strings"

	"github.com/agilira/go-errors"
)

// EnvPrefix prefixes every settings override variable
const EnvPrefix = "CERBERUS_"

// settingsKeys lists every key GatewaySettings binds
var settingsKeys = []string{
	KeyClamdSocket, KeyClamdHost, KeyClamdPort, KeyClamdTimeout,
	KeyRoot, KeyMountpoint, KeyPublic, KeyReadOnly, KeyNonEmpty,
	KeyCacheEntries, KeyCacheExpire, KeyMaxFileSize,
	KeyLogMethod, KeyLogFile, KeyLogLevel, KeyLogFormat, KeyLogVerbose,
	KeyStatsAtExit, KeyStatsEvery, KeyAuditEnabled, KeyAuditOutput,
}

// EnvVarForKey returns the environment variable that overrides key
func EnvVarForKey(key string) string {
	r := strings.NewReplacer(".", "_", "-", "_")
	return EnvPrefix + strings.ToUpper(r.Replace(key))
}

// ApplyEnvOverrides overrides settings from CERBERUS_* variables and returns
// the store keys that were overridden, sorted
func ApplyEnvOverrides(settings *GatewaySettings) ([]string, error) {
	return applyEnvOverrides(settings, os.LookupEnv)
}

func applyEnvOverrides(settings *GatewaySettings, lookup func(string) (string, bool)) ([]string, error) {
	if settings == nil {
		return nil, errors.New(ErrCodeInvalidSettings, "settings cannot be nil")
	}

	overlay := NewStore()
	var applied []string
	for _, key := range settingsKeys {
		if value, ok := lookup(EnvVarForKey(key)); ok {
			overlay.set(key, value)
			applied = append(applied, key)
		}
	}
	if len(applied) == 0 {
		return nil, nil
	}

	// Bind the overlay with the current settings as defaults so untouched
	// fields keep their values
	updated := *settings
	if err := updated.Bind(NewConfigBinder(overlay), *settings).Apply(); err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidSettings, "invalid environment override")
	}
	*settings = updated

	sort.Strings(applied)
	return applied, nil
}
