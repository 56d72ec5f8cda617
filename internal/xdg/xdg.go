// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package xdg locates procauth files under the XDG base directories.
package xdg

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

const appName = "procauth"

// ConfigFileName is the file ConfigFile looks for.
const ConfigFileName = "procauth.yaml"

// ConfigDir returns $XDG_CONFIG_HOME/procauth, falling back to
// ~/.config/procauth.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the default configuration path when that file exists,
// or "" when it does not.
func ConfigFile() string {
	path := filepath.Join(ConfigDir(), ConfigFileName)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return ""
	}
	return path
}
