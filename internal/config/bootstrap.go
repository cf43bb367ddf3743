// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
)

//go:embed lexia.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/lexia/lexia.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", lexiaerr.Errorf(lexiaerr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "lexia", "lexia.yaml"), nil
}

// BootstrapConfig writes the commented default config to the default path
// when no file exists there. It returns the path written, or "" when
// nothing was written. Failures are logged at debug and otherwise ignored.
func BootstrapConfig() string {
	cfgPath, err := DefaultConfigPath()
	if err != nil {
		slog.Debug("skipping config bootstrap", "error", err)
		return ""
	}
	return bootstrapAt(cfgPath)
}

func bootstrapAt(cfgPath string) string {
	if _, err := os.Stat(cfgPath); err == nil {
		return ""
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		slog.Debug("skipping config bootstrap: cannot create directory", "path", dir, "error", err)
		return ""
	}

	if err := os.WriteFile(cfgPath, DefaultConfigYAML, 0o600); err != nil {
		slog.Debug("skipping config bootstrap: cannot write config", "path", cfgPath, "error", err)
		return ""
	}

	slog.Info("created default config", "path", cfgPath)
	return cfgPath
}
