// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magnum Contributors

package plugin

import (
	"fmt"
	"sort"
	"sync"
)

// Registration declares a statically linked plugin. Static plugins are
// compiled into the host executable and register themselves from init()
// before any Manager can observe them.
type Registration struct {
	// Name of the plugin, unique per interface tag.
	Name string
	// Interface tag the plugin implements.
	Interface InterfaceTag
	// Version is the plugin's semantic version.
	Version string
	// Dependencies lists plugin names that must be loaded first.
	Dependencies []string
	// Factory produces a new instance of the abstract interface.
	Factory func() (any, error)
}

// Registry is a table of statically registered plugins keyed by
// name+interface. It is safe for concurrent use; the zero value is not
// ready, use NewRegistry.
//
// The process-wide default registry is shared by all Managers: two
// Managers bound to the same tag observe the same Static entries and
// neither ever unmaps one.
type Registry struct {
	mu      sync.Mutex
	entries map[registryKey]Registration
}

type registryKey struct {
	name string
	tag  InterfaceTag
}

// NewRegistry creates an empty registry. Most callers want the package
// default reached through Register; separate registries exist for tests
// and for embedders that sandbox plugin sets.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[registryKey]Registration)}
}

// defaultRegistry backs Register and MustRegister.
var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry { return defaultRegistry }

// Register adds a static plugin to the process-wide registry. Re-registering
// an already registered name+interface is a reported conflict, never a
// silent overwrite.
func Register(r Registration) error {
	return defaultRegistry.Register(r)
}

// MustRegister is Register for init() use; it panics on conflict or
// invalid registration.
func MustRegister(r Registration) {
	if err := Register(r); err != nil {
		panic("plugin: " + err.Error())
	}
}

// Register adds a static plugin to this registry.
func (reg *Registry) Register(r Registration) error {
	if err := validateName(r.Name); err != nil {
		return err
	}
	if r.Interface == "" {
		return fmt.Errorf("static plugin %q: interface is required", r.Name)
	}
	if r.Factory == nil {
		return fmt.Errorf("static plugin %q: factory is required", r.Name)
	}
	for _, dep := range r.Dependencies {
		if err := validateName(dep); err != nil {
			return fmt.Errorf("static plugin %q dependency: %w", r.Name, err)
		}
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	key := registryKey{name: r.Name, tag: r.Interface}
	if _, ok := reg.entries[key]; ok {
		return fmt.Errorf("static plugin %q already registered for interface %q", r.Name, r.Interface)
	}
	reg.entries[key] = r
	return nil
}

// Lookup returns the registration for name under tag.
func (reg *Registry) Lookup(name string, tag InterfaceTag) (Registration, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.entries[registryKey{name: name, tag: tag}]
	return r, ok
}

// ByInterface returns all registrations for tag, sorted by name for
// deterministic scans.
func (reg *Registry) ByInterface(tag InterfaceTag) []Registration {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	var out []Registration
	for key, r := range reg.entries {
		if key.tag == tag {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
