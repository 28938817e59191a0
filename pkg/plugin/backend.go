// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magnum Contributors

package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	hashiplug "github.com/hashicorp/go-plugin"
	"github.com/sethvargo/go-retry"

	"github.com/ddway2/magnum/pkg/pluginsdk"
)

// Subprocess handshake retry bounds. Plugin processes occasionally lose
// the startup race on loaded machines; a manifest mismatch is never
// retried.
const (
	handshakeRetries  = 2
	handshakeInterval = 200 * time.Millisecond
)

// PluginClient wraps a go-plugin client for testability.
type PluginClient interface {
	// Client returns the RPC client protocol.
	Client() (hashiplug.ClientProtocol, error)
	// Kill terminates the plugin process.
	Kill()
}

// ClientFactory creates plugin clients.
type ClientFactory interface {
	// NewClient creates a client for the given executable path.
	NewClient(execPath string) PluginClient
}

// DefaultClientFactory launches real plugin subprocesses.
type DefaultClientFactory struct{}

// NewClient creates a real go-plugin client.
func (f *DefaultClientFactory) NewClient(execPath string) PluginClient {
	return hashiplug.NewClient(&hashiplug.ClientConfig{
		HandshakeConfig:  pluginsdk.HandshakeConfig,
		Plugins:          pluginsdk.PluginMap(nil),
		Cmd:              exec.Command(execPath), // #nosec G204 -- execPath resolved from plugin manifest; manifests validated during scan
		AllowedProtocols: []hashiplug.Protocol{hashiplug.ProtocolNetRPC},
		Logger: hclog.New(&hclog.LoggerOptions{
			Name:  "magnum.plugin",
			Level: hclog.Warn,
		}),
	})
}

// dynamicBackend maps dynamic plugin executables into the process by
// starting one subprocess per descriptor and dispensing its provider.
// The Manager owns reference counts; the backend keeps at most one live
// handle per plugin name.
type dynamicBackend struct {
	logger  *slog.Logger
	factory ClientFactory

	mu      sync.Mutex
	handles map[string]*dynamicHandle
}

type dynamicHandle struct {
	client   PluginClient
	provider pluginsdk.Provider
}

func newDynamicBackend(logger *slog.Logger, factory ClientFactory) *dynamicBackend {
	return &dynamicBackend{
		logger:  logger,
		factory: factory,
		handles: make(map[string]*dynamicHandle),
	}
}

// open starts the plugin process for d and dispenses its provider. It is
// idempotent per name: a second open while the handle is live is a no-op.
func (b *dynamicBackend) open(ctx context.Context, d *Descriptor) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.handles[d.name]; ok {
		return nil
	}

	if _, err := os.Stat(d.locator); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("plugin executable not found: %s: %w", d.locator, err)
		}
		return fmt.Errorf("cannot access plugin executable %s: %w", d.locator, err)
	}

	var handle *dynamicHandle
	backoff := retry.WithMaxRetries(handshakeRetries, retry.NewConstant(handshakeInterval))
	err := retry.Do(ctx, backoff, func(context.Context) error {
		h, transient, err := b.openOnce(d)
		if err != nil && transient {
			b.logger.Warn("plugin handshake failed, retrying",
				"plugin", d.name,
				"error", err)
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		handle = h
		return nil
	})
	if err != nil {
		return err
	}

	b.handles[d.name] = handle
	return nil
}

// openOnce performs one launch attempt. transient reports whether the
// failure is a handshake or dispense problem, as opposed to a manifest
// mismatch, which no retry can fix.
func (b *dynamicBackend) openOnce(d *Descriptor) (handle *dynamicHandle, transient bool, err error) {
	client := b.factory.NewClient(d.locator)

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, true, fmt.Errorf("failed to connect to plugin %s: %w", d.name, err)
	}

	raw, err := rpcClient.Dispense(pluginsdk.DispenseName)
	if err != nil {
		client.Kill()
		return nil, true, fmt.Errorf("failed to dispense plugin %s: %w", d.name, err)
	}

	provider, ok := raw.(pluginsdk.Provider)
	if !ok {
		client.Kill()
		return nil, false, fmt.Errorf("plugin %s does not implement Provider", d.name)
	}

	manifest, err := provider.Describe()
	if err != nil {
		client.Kill()
		return nil, true, fmt.Errorf("failed to describe plugin %s: %w", d.name, err)
	}
	if err := checkManifest(d, manifest); err != nil {
		client.Kill()
		return nil, false, err
	}

	return &dynamicHandle{client: client, provider: provider}, false, nil
}

// checkManifest cross-checks the plugin's self-description against what the
// scan recorded. Drift between the executable and its plugin.yaml means
// the binary on disk is not what the descriptor promised.
func checkManifest(d *Descriptor, m pluginsdk.Manifest) error {
	if m.Name != d.name {
		return fmt.Errorf("plugin %s reports name %q", d.name, m.Name)
	}
	if InterfaceTag(m.Interface) != d.tag {
		return fmt.Errorf("plugin %s reports interface %q, descriptor declares %q", d.name, m.Interface, d.tag)
	}
	if m.Version != d.version {
		return fmt.Errorf("plugin %s reports version %q, descriptor declares %q", d.name, m.Version, d.version)
	}
	return nil
}

// provider returns the dispensed provider for an open plugin.
func (b *dynamicBackend) provider(name string) (pluginsdk.Provider, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.handles[name]
	if !ok {
		return nil, false
	}
	return h.provider, true
}

// close kills the plugin process and forgets the handle. Closing a name
// that is not open is a no-op.
func (b *dynamicBackend) close(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h, ok := b.handles[name]
	if !ok {
		return
	}
	if h.client != nil {
		h.client.Kill()
	}
	delete(b.handles, name)
}
