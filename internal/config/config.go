// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magnum Contributors

// Package config loads CLI configuration from file, environment, and
// flags. Later sources override earlier ones: defaults, then magnum.yaml,
// then MAGNUM__ environment variables, then command line flags.
//
// Environment variable transformation:
//   - MAGNUM__DIRECTORY   → directory
//   - MAGNUM__LOG__FORMAT → log.format
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/ddway2/magnum/internal/xdg"
)

// ConfigFile is the standard configuration file name.
const ConfigFile = "magnum.yaml"

// envPrefix for environment overrides.
const envPrefix = "MAGNUM__"

// Log holds logging configuration.
type Log struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// Config holds CLI configuration.
type Config struct {
	// Directory is the plugin search directory. Empty means the XDG
	// default for the configured interface family.
	Directory string `koanf:"directory"`
	// Interface is the tag the manager binds to.
	Interface string `koanf:"interface"`
	Log       Log    `koanf:"log"`
}

// Load reads configuration. path may be empty, in which case magnum.yaml
// is looked up in the working directory and then the XDG config dir.
// flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]any{
		"directory":  "",
		"interface":  "magnum.importer/1.0",
		"log.format": "text",
		"log.level":  "info",
	}
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path == "" {
		path = searchConfig()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", transformEnv), nil); err != nil {
		return nil, fmt.Errorf("loading env config: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, fmt.Errorf("loading flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// PluginDirectory resolves the effective plugin directory: the configured
// one, or the XDG default for the interface's family.
func (c *Config) PluginDirectory() string {
	if c.Directory != "" {
		return c.Directory
	}
	return xdg.PluginsDir(InterfaceFamily(c.Interface))
}

// InterfaceFamily extracts the family name from an interface tag:
// "magnum.importer/1.0" → "importer". Tags without the expected shape map
// to "plugins".
func InterfaceFamily(tag string) string {
	base := tag
	if i := strings.IndexByte(base, '/'); i >= 0 {
		base = base[:i]
	}
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		base = base[i+1:]
	}
	if base == "" {
		return "plugins"
	}
	return base
}

// transformEnv maps MAGNUM__LOG__FORMAT to log.format.
func transformEnv(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "__", ".")
}

// searchConfig looks for magnum.yaml in the working directory, then the
// XDG config directory.
func searchConfig() string {
	if _, err := os.Stat(ConfigFile); err == nil {
		return ConfigFile
	}
	candidate := filepath.Join(xdg.ConfigDir(), ConfigFile)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}
