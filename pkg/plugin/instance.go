// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magnum Contributors

package plugin

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ddway2/magnum/pkg/pluginsdk"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

func newInstanceID() ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
}

// Instance is a live plugin object, exclusively owned by the caller that
// requested it. It carries a non-owning back-reference to the Manager
// that created it; the Manager refuses teardown while any of its
// instances are still live, because unmapping code behind a live instance
// corrupts memory rather than failing cleanly.
type Instance struct {
	id   ulid.ULID
	name string
	impl any
	mgr  *Manager

	mu     sync.Mutex
	closed bool
}

// ID returns the instance's unique identifier.
func (i *Instance) ID() ulid.ULID { return i.id }

// Plugin returns the name of the plugin that produced this instance.
func (i *Instance) Plugin() string { return i.name }

// Impl returns the underlying value implementing the abstract interface.
// For static plugins this is whatever the registered factory produced;
// for dynamic plugins it is a *Remote. Callers type-assert it to the
// capability surface (importer, font, converter) they requested.
func (i *Instance) Impl() any {
	return i.impl
}

// Close releases the instance and its back-reference to the Manager.
// If the underlying value implements Close() error, it is closed too.
// Close is idempotent.
func (i *Instance) Close() error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return nil
	}
	i.closed = true
	i.mu.Unlock()

	var err error
	if c, ok := i.impl.(interface{ Close() error }); ok {
		err = c.Close()
	}
	i.mgr.release(i)
	return err
}

// Remote is the host-side proxy for an instance served by a dynamic
// plugin process. The manager never interprets ops or payloads; abstract
// capability surfaces are layered on top of Invoke by the embedding
// application.
type Remote struct {
	provider pluginsdk.Provider
	remoteID uint64

	mu     sync.Mutex
	closed bool
}

// Invoke calls an operation on the remote instance.
func (r *Remote) Invoke(op string, payload []byte) ([]byte, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return nil, ErrInstanceClosed
	}
	return r.provider.Invoke(r.remoteID, op, payload)
}

// Close disposes the remote instance in the plugin process.
func (r *Remote) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()
	return r.provider.DisposeInstance(r.remoteID)
}
