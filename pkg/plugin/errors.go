// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magnum Contributors

package plugin

import "errors"

// Error codes attached to oops errors returned across the manager boundary.
// Callers match on these via oops.AsOops(err).Code() to decide whether to
// retry, fall back to another plugin, or abort startup.
const (
	// CodeNotFound means the name is unknown to this manager.
	CodeNotFound = "PLUGIN_NOT_FOUND"
	// CodeMissingDependency means the dependency chain references an
	// unresolvable name.
	CodeMissingDependency = "MISSING_DEPENDENCY"
	// CodeCyclicDependency means the resolver detected a cycle.
	CodeCyclicDependency = "CYCLIC_DEPENDENCY"
	// CodeLoadFailed means a backend-level failure: missing executable,
	// handshake failure, manifest mismatch.
	CodeLoadFailed = "LOAD_FAILED"
	// CodeStillInUse means unload was attempted while instances or loaded
	// dependents are live.
	CodeStillInUse = "STILL_IN_USE"
	// CodeLifecycleViolation means the manager was torn down with live
	// instances outstanding. This indicates a caller bug and is surfaced
	// loudly rather than masked.
	CodeLifecycleViolation = "LIFECYCLE_VIOLATION"
)

// Sentinel errors for programmatic error checking.
var (
	// ErrManagerClosed is returned when operations are attempted on a
	// manager that has completed teardown.
	ErrManagerClosed = errors.New("plugin: manager is closed")
	// ErrInstanceClosed is returned when an instance is used after release.
	ErrInstanceClosed = errors.New("plugin: instance is closed")
)
