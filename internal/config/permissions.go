// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

//go:build !windows

package config

import (
	"io/fs"
	"log/slog"
	"os"
)

// WarnInsecurePermissions logs a warning when the config file at path can
// be read by group or other. It never fails; openai.api_key may live in
// that file.
func WarnInsecurePermissions(path string) {
	if path == "" {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		slog.Debug("could not stat config file for permission check", "path", path, "error", err)
		return
	}

	const readableByOthers fs.FileMode = 0o044
	if mode := info.Mode(); mode.Perm()&readableByOthers != 0 {
		slog.Warn("config file has insecure permissions, api keys may be readable by other users",
			"path", path,
			"mode", mode,
			"recommended", "0600",
		)
	}
}
