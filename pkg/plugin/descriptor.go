// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magnum Contributors

// Package plugin implements the Magnum plugin manager: discovery of plugin
// candidates in a directory, dependency-aware load and unload, and the
// ownership protocol between a Manager and the instances it creates.
package plugin

// InterfaceTag identifies an abstract plugin interface, e.g.
// "magnum.importer/1.0". A Manager is bound to exactly one tag and only
// considers plugins declaring it.
type InterfaceTag string

// Kind identifies how a plugin's code gets into the process.
type Kind int

// Plugin kinds.
const (
	// KindDynamic plugins live in a separate executable started on load.
	KindDynamic Kind = iota
	// KindStatic plugins are linked into the host and registered at
	// process start.
	KindStatic
)

func (k Kind) String() string {
	switch k {
	case KindDynamic:
		return "dynamic"
	case KindStatic:
		return "static"
	default:
		return "unknown"
	}
}

// LoadState describes a descriptor's position in the load lifecycle.
// Transitions are driven only by the Manager's load and unload operations.
type LoadState int

// Load states.
const (
	// StateNotFound means the name is unknown to the manager.
	StateNotFound LoadState = iota
	// StateUnresolved means the candidate was found but its metadata could
	// not be used: parse failure, interface tag mismatch, bad version.
	StateUnresolved
	// StateUnloaded means the plugin is known but its binary is not mapped.
	StateUnloaded
	// StateLoaded means the plugin's binary is mapped and refcounted.
	StateLoaded
	// StateStatic means the plugin is linked into the executable. Reported
	// distinctly from Loaded so callers can detect the absence of a real
	// unload action.
	StateStatic
)

func (s LoadState) String() string {
	switch s {
	case StateNotFound:
		return "not found"
	case StateUnresolved:
		return "unresolved"
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	case StateStatic:
		return "static"
	default:
		return "unknown"
	}
}

// Descriptor is static metadata about one candidate plugin. Immutable once
// discovered; a rescan replaces a descriptor only while it is not loaded.
type Descriptor struct {
	name    string
	tag     InterfaceTag
	version string
	deps    []string
	kind    Kind
	locator string
	metaErr error
}

// Name returns the plugin's unique name.
func (d *Descriptor) Name() string { return d.name }

// Interface returns the interface tag the plugin implements.
func (d *Descriptor) Interface() InterfaceTag { return d.tag }

// Version returns the plugin's semantic version.
func (d *Descriptor) Version() string { return d.version }

// Dependencies returns the declared dependency names in declaration order.
func (d *Descriptor) Dependencies() []string {
	out := make([]string, len(d.deps))
	copy(out, d.deps)
	return out
}

// Kind returns whether the plugin is dynamic or static.
func (d *Descriptor) Kind() Kind { return d.kind }

// Locator returns the executable path for dynamic plugins or the registry
// key for static ones.
func (d *Descriptor) Locator() string { return d.locator }

// MetadataError returns why the candidate is unusable, or nil. A non-nil
// value means the descriptor reports StateUnresolved; it is recorded
// rather than dropped so callers can see why a named plugin cannot load.
func (d *Descriptor) MetadataError() error { return d.metaErr }
