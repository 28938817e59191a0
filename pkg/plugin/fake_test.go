// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magnum Contributors

package plugin_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	hashiplug "github.com/hashicorp/go-plugin"
	"github.com/stretchr/testify/require"

	"github.com/ddway2/magnum/pkg/plugin"
	"github.com/ddway2/magnum/pkg/pluginsdk"
)

const testTag = plugin.InterfaceTag("magnum.test/1.0")

// fakeFactory produces in-process plugin clients backed by pluginsdk
// providers, so manager tests never spawn subprocesses.
type fakeFactory struct {
	mu         sync.Mutex
	providers  map[string]pluginsdk.Provider
	connectErr map[string]error
	opens      []string
	kills      []string
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		providers:  make(map[string]pluginsdk.Provider),
		connectErr: make(map[string]error),
	}
}

func (f *fakeFactory) NewClient(execPath string) plugin.PluginClient {
	return &fakeClient{f: f, path: execPath}
}

func (f *fakeFactory) setProvider(execPath string, p pluginsdk.Provider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.providers[execPath] = p
}

func (f *fakeFactory) failConnect(execPath string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectErr[execPath] = err
}

// openedNames returns base names of successfully opened executables, in
// order.
func (f *fakeFactory) openedNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.opens))
	for i, p := range f.opens {
		out[i] = filepath.Base(p)
	}
	return out
}

// killedNames returns base names of killed executables, in order.
func (f *fakeFactory) killedNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.kills))
	for i, p := range f.kills {
		out[i] = filepath.Base(p)
	}
	return out
}

type fakeClient struct {
	f    *fakeFactory
	path string
}

func (c *fakeClient) Client() (hashiplug.ClientProtocol, error) {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	if err := c.f.connectErr[c.path]; err != nil {
		return nil, err
	}
	p, ok := c.f.providers[c.path]
	if !ok {
		return nil, fmt.Errorf("no provider for %s", c.path)
	}
	c.f.opens = append(c.f.opens, c.path)
	return &fakeProtocol{provider: p}, nil
}

func (c *fakeClient) Kill() {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	c.f.kills = append(c.f.kills, c.path)
}

type fakeProtocol struct {
	provider pluginsdk.Provider
}

func (p *fakeProtocol) Close() error { return nil }
func (p *fakeProtocol) Ping() error  { return nil }

func (p *fakeProtocol) Dispense(name string) (any, error) {
	if name != pluginsdk.DispenseName {
		return nil, fmt.Errorf("unknown plugin %q", name)
	}
	return p.provider, nil
}

// echoHandler is a trivial plugin instance for tests.
type echoHandler struct{}

func (echoHandler) Invoke(_ string, payload []byte) ([]byte, error) { return payload, nil }
func (echoHandler) Close() error                                    { return nil }

// writePlugin creates a plugin directory with a manifest and a dummy
// executable, and registers a matching provider with the factory.
// Returns the executable path.
func writePlugin(t *testing.T, f *fakeFactory, dir, name string, deps ...string) string {
	t.Helper()

	pluginDir := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(pluginDir, 0o750))

	manifest := fmt.Sprintf("name: %s\nversion: 1.0.0\ninterface: %s\nexecutable: %s\n", name, testTag, name)
	if len(deps) > 0 {
		manifest += fmt.Sprintf("dependencies: [%s]\n", strings.Join(deps, ", "))
	}
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "plugin.yaml"), []byte(manifest), 0o600))

	execPath := filepath.Join(pluginDir, name)
	require.NoError(t, os.WriteFile(execPath, []byte("#!/bin/true\n"), 0o750)) // #nosec G306 -- stand-in executable

	if f != nil {
		f.setProvider(execPath, pluginsdk.NewProvider(
			pluginsdk.Manifest{
				Name:         name,
				Interface:    string(testTag),
				Version:      "1.0.0",
				Dependencies: deps,
			},
			func() (pluginsdk.Handler, error) { return echoHandler{}, nil },
		))
	}
	return execPath
}

// newTestManager builds a manager over dir with the fake factory and a
// quiet logger.
func newTestManager(t *testing.T, f *fakeFactory, dir string, opts ...plugin.Option) *plugin.Manager {
	t.Helper()
	opts = append([]plugin.Option{
		plugin.WithClientFactory(f),
		plugin.WithRegistry(plugin.NewRegistry()),
	}, opts...)
	mgr, err := plugin.New(testTag, dir, opts...)
	require.NoError(t, err)
	return mgr
}
