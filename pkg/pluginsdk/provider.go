// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magnum Contributors

package pluginsdk

import (
	"fmt"
	"sync"
)

// Handler is one live instance inside a plugin process.
type Handler interface {
	// Invoke executes an operation against this instance.
	Invoke(op string, payload []byte) ([]byte, error)

	// Close releases the instance.
	Close() error
}

// Factory produces a new Handler. It takes no arguments; per-instance
// configuration travels through Invoke ops instead.
type Factory func() (Handler, error)

// BasicProvider implements Provider backed by a Factory, tracking live
// instances by ID. It is safe for concurrent use, which matters because
// the host may serve several owned instances from one plugin process.
type BasicProvider struct {
	manifest Manifest
	factory  Factory

	mu        sync.Mutex
	nextID    uint64
	instances map[uint64]Handler
}

// Compile-time interface check.
var _ Provider = (*BasicProvider)(nil)

// NewProvider creates a BasicProvider for the given manifest and factory.
// Panics if factory is nil.
func NewProvider(manifest Manifest, factory Factory) *BasicProvider {
	if factory == nil {
		panic("pluginsdk: factory cannot be nil")
	}
	return &BasicProvider{
		manifest:  manifest,
		factory:   factory,
		instances: make(map[uint64]Handler),
	}
}

// Describe returns the provider's manifest.
func (p *BasicProvider) Describe() (Manifest, error) {
	return p.manifest, nil
}

// NewInstance creates a Handler via the factory and registers it.
func (p *BasicProvider) NewInstance() (uint64, error) {
	h, err := p.factory()
	if err != nil {
		return 0, fmt.Errorf("new instance of %s: %w", p.manifest.Name, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	p.instances[id] = h
	return id, nil
}

// Invoke routes an operation to the instance with the given ID.
func (p *BasicProvider) Invoke(id uint64, op string, payload []byte) ([]byte, error) {
	p.mu.Lock()
	h, ok := p.instances[id]
	p.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%s: no such instance %d", p.manifest.Name, id)
	}
	return h.Invoke(op, payload)
}

// DisposeInstance closes and forgets the instance with the given ID.
// Disposing an unknown ID is a no-op so that host-side release is
// idempotent across reconnects.
func (p *BasicProvider) DisposeInstance(id uint64) error {
	p.mu.Lock()
	h, ok := p.instances[id]
	delete(p.instances, id)
	p.mu.Unlock()

	if !ok {
		return nil
	}
	if err := h.Close(); err != nil {
		return fmt.Errorf("close instance %d of %s: %w", id, p.manifest.Name, err)
	}
	return nil
}

// Live returns the number of live instances. Used by tests and by plugin
// authors that want to expose instance counts.
func (p *BasicProvider) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.instances)
}
