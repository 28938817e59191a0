// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magnum Contributors

package plugin_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddway2/magnum/pkg/plugin"
)

type staticImporter struct{ formats []string }

func registerStatic(t *testing.T, reg *plugin.Registry, name string, deps ...string) {
	t.Helper()
	require.NoError(t, reg.Register(plugin.Registration{
		Name:         name,
		Interface:    testTag,
		Version:      "1.0.0",
		Dependencies: deps,
		Factory:      func() (any, error) { return &staticImporter{formats: []string{"tga"}}, nil },
	}))
}

func TestRegistry_Register(t *testing.T) {
	reg := plugin.NewRegistry()
	registerStatic(t, reg, "tga-importer")

	r, ok := reg.Lookup("tga-importer", testTag)
	require.True(t, ok)
	assert.Equal(t, "tga-importer", r.Name)

	_, ok = reg.Lookup("tga-importer", "magnum.other/1.0")
	assert.False(t, ok, "lookup is keyed by name and interface")
}

func TestRegistry_RegisterConflict(t *testing.T) {
	reg := plugin.NewRegistry()
	registerStatic(t, reg, "tga-importer")

	err := reg.Register(plugin.Registration{
		Name:      "tga-importer",
		Interface: testTag,
		Version:   "2.0.0",
		Factory:   func() (any, error) { return &staticImporter{}, nil },
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	// The original registration is untouched.
	r, ok := reg.Lookup("tga-importer", testTag)
	require.True(t, ok)
	assert.Equal(t, "1.0.0", r.Version)
}

func TestRegistry_RegisterInvalid(t *testing.T) {
	reg := plugin.NewRegistry()

	assert.Error(t, reg.Register(plugin.Registration{
		Name: "Bad Name", Interface: testTag,
		Factory: func() (any, error) { return nil, nil },
	}))
	assert.Error(t, reg.Register(plugin.Registration{
		Name: "no-interface",
		Factory: func() (any, error) { return nil, nil },
	}))
	assert.Error(t, reg.Register(plugin.Registration{
		Name: "no-factory", Interface: testTag,
	}))
}

func TestRegistry_ByInterface(t *testing.T) {
	reg := plugin.NewRegistry()
	registerStatic(t, reg, "zeta")
	registerStatic(t, reg, "alpha")

	regs := reg.ByInterface(testTag)
	require.Len(t, regs, 2)
	assert.Equal(t, "alpha", regs[0].Name)
	assert.Equal(t, "zeta", regs[1].Name)
}

func TestManager_StaticPlugin(t *testing.T) {
	reg := plugin.NewRegistry()
	registerStatic(t, reg, "tga-importer")

	f := newFakeFactory()
	mgr := newTestManager(t, f, t.TempDir(), plugin.WithRegistry(reg))
	defer mgr.Close(context.Background()) //nolint:errcheck
	ctx := context.Background()

	d, state := mgr.Lookup("tga-importer")
	require.NotNil(t, d)
	assert.Equal(t, plugin.KindStatic, d.Kind())
	assert.Equal(t, plugin.StateStatic, state)

	// Loading a static plugin is trivially successful and never touches
	// the dynamic backend.
	state, err := mgr.Load(ctx, "tga-importer")
	require.NoError(t, err)
	assert.Equal(t, plugin.StateStatic, state)
	assert.Empty(t, f.openedNames())

	// Unloading is a successful no-op.
	state, err = mgr.Unload(ctx, "tga-importer")
	require.NoError(t, err)
	assert.Equal(t, plugin.StateStatic, state)
}

func TestManager_StaticInstantiate(t *testing.T) {
	reg := plugin.NewRegistry()
	registerStatic(t, reg, "tga-importer")

	mgr := newTestManager(t, newFakeFactory(), t.TempDir(), plugin.WithRegistry(reg))
	defer mgr.Close(context.Background()) //nolint:errcheck

	inst, err := mgr.Instantiate(context.Background(), "tga-importer")
	require.NoError(t, err)

	imp, ok := inst.Impl().(*staticImporter)
	require.True(t, ok, "static instance impl should be the factory's value, got %T", inst.Impl())
	assert.Equal(t, []string{"tga"}, imp.formats)

	require.NoError(t, inst.Close())
}

func TestManager_StaticWithDynamicDependency(t *testing.T) {
	dir := t.TempDir()
	f := newFakeFactory()
	writePlugin(t, f, dir, "image-importer-b")

	reg := plugin.NewRegistry()
	registerStatic(t, reg, "font-a", "image-importer-b")

	mgr := newTestManager(t, f, dir, plugin.WithRegistry(reg))
	ctx := context.Background()

	state, err := mgr.Load(ctx, "font-a")
	require.NoError(t, err)
	assert.Equal(t, plugin.StateStatic, state)
	assert.Equal(t, plugin.StateLoaded, mgr.State("image-importer-b"))

	// Unloading the static dependent is a no-op; its dynamic dependency
	// stays mapped until the manager itself closes.
	_, err = mgr.Unload(ctx, "font-a")
	require.NoError(t, err)
	assert.Equal(t, plugin.StateLoaded, mgr.State("image-importer-b"))

	require.NoError(t, mgr.Close(ctx))
	assert.Equal(t, []string{"image-importer-b"}, f.killedNames())
}

func TestManager_StaticShadowsDirectoryCandidate(t *testing.T) {
	dir := t.TempDir()
	f := newFakeFactory()
	writePlugin(t, f, dir, "tga-importer")

	reg := plugin.NewRegistry()
	registerStatic(t, reg, "tga-importer")

	mgr := newTestManager(t, f, dir, plugin.WithRegistry(reg))
	defer mgr.Close(context.Background()) //nolint:errcheck

	d, state := mgr.Lookup("tga-importer")
	require.NotNil(t, d)
	assert.Equal(t, plugin.KindStatic, d.Kind())
	assert.Equal(t, plugin.StateStatic, state)
}

func TestManager_SharedRegistryAcrossManagers(t *testing.T) {
	reg := plugin.NewRegistry()
	registerStatic(t, reg, "tga-importer")
	ctx := context.Background()

	first := newTestManager(t, newFakeFactory(), t.TempDir(), plugin.WithRegistry(reg))
	second := newTestManager(t, newFakeFactory(), t.TempDir(), plugin.WithRegistry(reg))

	assert.Equal(t, plugin.StateStatic, first.State("tga-importer"))
	assert.Equal(t, plugin.StateStatic, second.State("tga-importer"))

	// Closing one manager never unregisters a static plugin from the
	// shared registry.
	require.NoError(t, first.Close(ctx))
	assert.Equal(t, plugin.StateStatic, second.State("tga-importer"))
	require.NoError(t, second.Close(ctx))
}
