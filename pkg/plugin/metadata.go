// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magnum Contributors

package plugin

import (
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// Manifest represents a plugin.yaml file placed next to a dynamic plugin's
// executable.
type Manifest struct {
	Name         string         `yaml:"name" json:"name"`
	Version      string         `yaml:"version" json:"version"`
	Interface    string         `yaml:"interface" json:"interface"`
	Dependencies []string       `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Executable   string         `yaml:"executable" json:"executable"`
	Config       map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
	ConfigSchema map[string]any `yaml:"config-schema,omitempty" json:"config-schema,omitempty"`
}

// maxNameLength is the maximum allowed length for plugin names.
const maxNameLength = 64

// namePattern validates plugin names: must start with a lowercase letter,
// followed by lowercase letters, digits, or hyphens. Cannot end with a
// hyphen. Single character names are allowed.
var namePattern = regexp.MustCompile(`^[a-z]([a-z0-9-]*[a-z0-9])?$`)

// ParseManifest parses and validates a plugin.yaml file.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("manifest data is empty")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest constraints.
func (m *Manifest) Validate() error {
	if err := validateName(m.Name); err != nil {
		return err
	}

	if m.Version == "" {
		return fmt.Errorf("version is required")
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return fmt.Errorf("version %q is not a semantic version: %w", m.Version, err)
	}

	if m.Interface == "" {
		return fmt.Errorf("interface is required")
	}

	if m.Executable == "" {
		return fmt.Errorf("executable is required")
	}

	for _, dep := range m.Dependencies {
		if err := validateName(dep); err != nil {
			return fmt.Errorf("dependency: %w", err)
		}
	}

	if m.ConfigSchema != nil {
		if err := m.ValidateConfig(); err != nil {
			return err
		}
	}

	return nil
}

// ValidateConfig validates the manifest's config block against its declared
// config-schema. A manifest without a schema always validates.
func (m *Manifest) ValidateConfig() error {
	if m.ConfigSchema == nil {
		return nil
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("config.schema.json", toJSONTypes(m.ConfigSchema)); err != nil {
		return fmt.Errorf("config-schema is not a valid schema: %w", err)
	}
	sch, err := c.Compile("config.schema.json")
	if err != nil {
		return fmt.Errorf("config-schema does not compile: %w", err)
	}

	var cfg any
	if m.Config != nil {
		cfg = toJSONTypes(m.Config)
	} else {
		cfg = map[string]any{}
	}
	if err := sch.Validate(cfg); err != nil {
		return fmt.Errorf("config does not match config-schema: %w", err)
	}
	return nil
}

func validateName(name string) error {
	if name == "" || !namePattern.MatchString(name) {
		return fmt.Errorf("name %q must start with a-z, contain only a-z, 0-9, hyphens, and not end with a hyphen", name)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("name must be %d characters or less, got %d", maxNameLength, len(name))
	}
	return nil
}
