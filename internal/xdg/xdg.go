// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magnum Contributors

// Package xdg provides XDG Base Directory paths for Magnum.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "magnum"

// ConfigDir returns the XDG config directory for magnum.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// DataDir returns the XDG data directory for magnum.
// Checks XDG_DATA_HOME first, falls back to ~/.local/share.
func DataDir() string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".local", "share")
	}
	return filepath.Join(base, appName)
}

// PluginsDir returns the default plugin search directory for tag, one
// subdirectory per interface family, e.g. .../magnum/plugins/importers.
func PluginsDir(family string) string {
	return filepath.Join(DataDir(), "plugins", family)
}
