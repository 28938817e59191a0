package plugin

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/samber/oops"
)

// manifestFile is the metadata file expected in each plugin directory.
const manifestFile = "plugin.yaml"

// Manager owns a plugin directory, the table of descriptors discovered in
// it, and the set of currently loaded plugins bound to one interface tag.
//
// All operations are guarded by an internal mutex, so a single Manager
// may be shared between goroutines. Independent Managers (one per
// interface tag) never coordinate; the static registry they share is
// internally synchronized.
type Manager struct {
	tag      InterfaceTag
	dir      string
	logger   *slog.Logger
	registry *Registry
	factory  ClientFactory
	dynamic  *dynamicBackend

	mu          sync.Mutex
	descriptors map[string]*Descriptor
	refs        map[string]int
	live        map[string]int
	liveTotal   int
	closed      bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClientFactory sets the factory creating plugin subprocess clients.
// Used by tests to substitute in-process fakes.
func WithClientFactory(f ClientFactory) Option {
	return func(m *Manager) { m.factory = f }
}

// WithRegistry sets the static registry consulted during scans. Defaults
// to the process-wide registry.
func WithRegistry(r *Registry) Option {
	return func(m *Manager) { m.registry = r }
}

// New creates a Manager bound to one interface tag and one plugin
// directory, and performs the initial scan. A missing directory is not an
// error; the manager then only sees statically registered plugins.
func New(tag InterfaceTag, dir string, opts ...Option) (*Manager, error) {
	if tag == "" {
		return nil, oops.Errorf("interface tag cannot be empty")
	}

	m := &Manager{
		tag:         tag,
		dir:         dir,
		logger:      slog.Default(),
		registry:    defaultRegistry,
		descriptors: make(map[string]*Descriptor),
		refs:        make(map[string]int),
		live:        make(map[string]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.factory == nil {
		m.factory = &DefaultClientFactory{}
	}
	m.dynamic = newDynamicBackend(m.logger, m.factory)

	if err := m.Scan(); err != nil {
		return nil, err
	}
	return m, nil
}

// Interface returns the interface tag this manager is bound to.
func (m *Manager) Interface() InterfaceTag { return m.tag }

// Directory returns the plugin search directory.
func (m *Manager) Directory() string { return m.dir }

// Scan populates the descriptor table from the directory and the static
// registry. It is idempotent: re-scanning neither duplicates descriptors
// nor invalidates ones that are currently loaded. Candidates whose
// metadata cannot be used are recorded as unresolved rather than dropped,
// so callers can report why a named plugin is unusable.
func (m *Manager) Scan() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}

	for _, reg := range m.registry.ByInterface(m.tag) {
		if existing, ok := m.descriptors[reg.Name]; ok && existing.kind == KindDynamic && m.refs[reg.Name] > 0 {
			// A loaded dynamic plugin keeps its slot until unloaded.
			continue
		}
		deps := make([]string, len(reg.Dependencies))
		copy(deps, reg.Dependencies)
		m.descriptors[reg.Name] = &Descriptor{
			name:    reg.Name,
			tag:     reg.Interface,
			version: reg.Version,
			deps:    deps,
			kind:    KindStatic,
			locator: reg.Name,
		}
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return oops.With("dir", m.dir).Wrapf(err, "failed to read plugin directory")
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pluginDir := filepath.Join(m.dir, entry.Name())
		d := m.scanCandidate(pluginDir, entry.Name())
		if d == nil {
			continue
		}

		if existing, ok := m.descriptors[d.name]; ok {
			if existing.kind == KindStatic {
				m.logger.Warn("directory plugin shadowed by static registration",
					"plugin", d.name,
					"dir", pluginDir)
				continue
			}
			if m.refs[d.name] > 0 {
				// Never invalidate a loaded descriptor.
				continue
			}
		}
		m.descriptors[d.name] = d
	}

	return nil
}

// scanCandidate builds a descriptor for one plugin directory. Returns nil
// for directories that are not candidates at all (no manifest file).
func (m *Manager) scanCandidate(pluginDir, dirName string) *Descriptor {
	data, err := os.ReadFile(filepath.Join(pluginDir, manifestFile)) //nolint:gosec // path constructed from ReadDir entries
	if err != nil {
		if os.IsNotExist(err) {
			m.logger.Debug("skipping directory without manifest", "dir", dirName)
			return nil
		}
		return &Descriptor{name: dirName, tag: m.tag, kind: KindDynamic, metaErr: err}
	}

	manifest, err := ParseManifest(data)
	if err != nil {
		m.logger.Warn("plugin has invalid manifest",
			"dir", dirName,
			"error", err)
		return &Descriptor{name: dirName, tag: m.tag, kind: KindDynamic, metaErr: err}
	}

	if InterfaceTag(manifest.Interface) != m.tag {
		return &Descriptor{
			name: manifest.Name,
			tag:  InterfaceTag(manifest.Interface),
			kind: KindDynamic,
			metaErr: oops.With("declared", manifest.Interface).
				With("bound", string(m.tag)).
				Errorf("interface tag mismatch"),
		}
	}

	deps := make([]string, len(manifest.Dependencies))
	copy(deps, manifest.Dependencies)
	return &Descriptor{
		name:    manifest.Name,
		tag:     m.tag,
		version: manifest.Version,
		deps:    deps,
		kind:    KindDynamic,
		locator: filepath.Join(pluginDir, manifest.Executable),
	}
}

// Names returns all known plugin names, sorted.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.descriptors))
	for name := range m.descriptors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the descriptor for name and its current load state.
// The descriptor is nil when the state is StateNotFound.
func (m *Manager) Lookup(name string) (*Descriptor, LoadState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.descriptors[name]
	if !ok {
		return nil, StateNotFound
	}
	return d, m.stateLocked(d)
}

// State returns the load state of name.
func (m *Manager) State(name string) LoadState {
	_, state := m.Lookup(name)
	return state
}

func (m *Manager) stateLocked(d *Descriptor) LoadState {
	switch {
	case d.metaErr != nil:
		return StateUnresolved
	case d.kind == KindStatic:
		return StateStatic
	case m.refs[d.name] > 0:
		return StateLoaded
	default:
		return StateUnloaded
	}
}

// Resolve returns the load order for name, dependencies first. It does
// not load anything.
func (m *Manager) Resolve(name string) ([]*Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.descriptors[name]; !ok {
		return nil, oops.Code(CodeNotFound).
			With("plugin", name).
			Errorf("plugin %q not found", name)
	}
	return resolveChain(m.descriptors, name)
}

// Load resolves name's dependency chain and loads every unloaded link in
// order, incrementing reference counts along the chain. On failure at any
// link, reference counts taken by this call are rolled back and binaries
// that drop to zero are unmapped, so a failed composite load leaks
// nothing. Returns the resulting state of name.
func (m *Manager) Load(ctx context.Context, name string) (LoadState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.loadLocked(ctx, name)
	switch {
	case err != nil:
		loadsTotal.WithLabelValues(resultError).Inc()
	case state == StateStatic:
		loadsTotal.WithLabelValues(resultStatic).Inc()
	default:
		loadsTotal.WithLabelValues(resultOK).Inc()
	}
	return state, err
}

func (m *Manager) loadLocked(ctx context.Context, name string) (LoadState, error) {
	if m.closed {
		return StateNotFound, ErrManagerClosed
	}

	d, ok := m.descriptors[name]
	if !ok {
		return StateNotFound, oops.Code(CodeNotFound).
			With("plugin", name).
			Errorf("plugin %q not found", name)
	}
	if d.metaErr != nil {
		return StateUnresolved, oops.Code(CodeLoadFailed).
			With("plugin", name).
			Wrapf(d.metaErr, "plugin %q has unusable metadata", name)
	}

	chain, err := resolveChain(m.descriptors, name)
	if err != nil {
		return m.stateLocked(d), err
	}

	var opened []string
	for _, link := range chain {
		if link.kind == KindStatic {
			continue
		}
		if m.refs[link.name] == 0 {
			if err := m.dynamic.open(ctx, link); err != nil {
				m.rollbackLocked(opened)
				return m.stateLocked(d), oops.Code(CodeLoadFailed).
					With("plugin", name).
					With("chain_link", link.name).
					With("locator", link.locator).
					Wrapf(err, "load %q failed at chain link %q", name, link.name)
			}
			m.logger.Info("loaded plugin",
				"plugin", link.name,
				"version", link.version,
				"interface", string(link.tag))
			loadedPlugins.Inc()
		}
		m.refs[link.name]++
		opened = append(opened, link.name)
	}

	return m.stateLocked(d), nil
}

// rollbackLocked undoes reference counts taken by a failed composite
// load, unmapping binaries that drop to zero, in reverse chain order.
func (m *Manager) rollbackLocked(opened []string) {
	for i := len(opened) - 1; i >= 0; i-- {
		m.dropRefLocked(opened[i])
	}
}

func (m *Manager) dropRefLocked(name string) {
	m.refs[name]--
	if m.refs[name] > 0 {
		return
	}
	delete(m.refs, name)
	m.dynamic.close(name)
	loadedPlugins.Dec()
	m.logger.Info("unloaded plugin", "plugin", name)
}

// Unload decrements reference counts along name's dependency chain and
// unmaps binaries that reach zero. It fails with STILL_IN_USE while any
// live instance of name exists or another loaded plugin depends on it.
// Unloading a static plugin is a successful no-op.
func (m *Manager) Unload(_ context.Context, name string) (LoadState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.unloadLocked(name)
	if err != nil {
		unloadsTotal.WithLabelValues(resultError).Inc()
	} else if state == StateStatic {
		unloadsTotal.WithLabelValues(resultStatic).Inc()
	} else {
		unloadsTotal.WithLabelValues(resultOK).Inc()
	}
	return state, err
}

func (m *Manager) unloadLocked(name string) (LoadState, error) {
	if m.closed {
		return StateNotFound, ErrManagerClosed
	}

	d, ok := m.descriptors[name]
	if !ok {
		return StateNotFound, oops.Code(CodeNotFound).
			With("plugin", name).
			Errorf("plugin %q not found", name)
	}
	if d.kind == KindStatic {
		// Statically linked units are never unmapped.
		return StateStatic, nil
	}
	if d.metaErr != nil || m.refs[name] == 0 {
		return m.stateLocked(d), nil
	}

	if n := m.live[name]; n > 0 {
		return StateLoaded, oops.Code(CodeStillInUse).
			With("plugin", name).
			With("live_instances", n).
			Errorf("plugin %q has %d live instances", name, n)
	}
	if dependent := m.loadedDependentLocked(name); dependent != "" {
		return StateLoaded, oops.Code(CodeStillInUse).
			With("plugin", name).
			With("dependent", dependent).
			Errorf("plugin %q is still required by loaded plugin %q", name, dependent)
	}

	chain, err := resolveChain(m.descriptors, name)
	if err != nil {
		return StateLoaded, err
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].kind == KindStatic {
			continue
		}
		m.dropRefLocked(chain[i].name)
	}
	return m.stateLocked(d), nil
}

// loadedDependentLocked returns the name of a loaded plugin whose
// dependency chain contains name, or "".
func (m *Manager) loadedDependentLocked(name string) string {
	for other := range m.refs {
		if other == name {
			continue
		}
		chain, err := resolveChain(m.descriptors, other)
		if err != nil {
			continue
		}
		for _, link := range chain {
			if link.name == name {
				return other
			}
		}
	}
	return ""
}

// Instantiate ensures name is loaded, asks its factory for a new instance
// of the abstract interface, and hands exclusive ownership to the caller.
// The manager keeps a live-instance count and refuses teardown while any
// instance it created has not been released.
func (m *Manager) Instantiate(ctx context.Context, name string) (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.loadLocked(ctx, name); err != nil {
		return nil, err
	}

	d := m.descriptors[name]
	impl, err := m.newImplLocked(d)
	if err != nil {
		// Undo the implicit load so a failed instantiate leaks nothing.
		chain, cerr := resolveChain(m.descriptors, name)
		if cerr == nil {
			for i := len(chain) - 1; i >= 0; i-- {
				if chain[i].kind == KindDynamic {
					m.dropRefLocked(chain[i].name)
				}
			}
		}
		return nil, oops.Code(CodeLoadFailed).
			With("plugin", name).
			Wrapf(err, "failed to instantiate plugin %q", name)
	}

	inst := &Instance{
		id:   newInstanceID(),
		name: name,
		impl: impl,
		mgr:  m,
	}
	m.live[name]++
	m.liveTotal++
	liveInstances.Inc()

	m.logger.Info("instantiated plugin",
		"plugin", name,
		"instance", inst.id.String())
	return inst, nil
}

func (m *Manager) newImplLocked(d *Descriptor) (any, error) {
	if d.kind == KindStatic {
		reg, ok := m.registry.Lookup(d.name, m.tag)
		if !ok {
			return nil, oops.Errorf("static registration for %q disappeared", d.name)
		}
		return reg.Factory()
	}

	provider, ok := m.dynamic.provider(d.name)
	if !ok {
		return nil, oops.Errorf("no open handle for %q", d.name)
	}
	remoteID, err := provider.NewInstance()
	if err != nil {
		return nil, err
	}
	return &Remote{provider: provider, remoteID: remoteID}, nil
}

// release drops the live-instance bookkeeping for inst. Called from
// Instance.Close.
func (m *Manager) release(inst *Instance) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.live[inst.name] > 0 {
		m.live[inst.name]--
		if m.live[inst.name] == 0 {
			delete(m.live, inst.name)
		}
		m.liveTotal--
		liveInstances.Dec()
	}
}

// Close tears the manager down, unloading every loaded plugin in reverse
// dependency order. Closing while instances created by this manager are
// still live is a contract violation by the caller: the manager reports
// it loudly and refuses to proceed, because unmapping code behind a live
// instance produces memory corruption rather than a clean failure.
func (m *Manager) Close(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	if m.liveTotal > 0 {
		names := make([]string, 0, len(m.live))
		for name := range m.live {
			names = append(names, name)
		}
		sort.Strings(names)
		m.logger.Error("manager teardown attempted with live instances",
			"interface", string(m.tag),
			"instances", m.liveTotal,
			"plugins", names)
		return oops.Code(CodeLifecycleViolation).
			With("plugins", names).
			With("instances", m.liveTotal).
			Errorf("manager torn down with %d live instances", m.liveTotal)
	}

	for _, name := range m.teardownOrderLocked() {
		m.refs[name] = 1 // collapse remaining refs; teardown unmaps exactly once
		m.dropRefLocked(name)
	}

	m.closed = true
	return nil
}

// teardownOrderLocked returns all loaded dynamic plugins in reverse
// dependency order: dependents before their dependencies.
func (m *Manager) teardownOrderLocked() []string {
	loaded := make([]string, 0, len(m.refs))
	for name := range m.refs {
		loaded = append(loaded, name)
	}
	sort.Strings(loaded)

	var order []string
	seen := make(map[string]bool)
	for _, name := range loaded {
		chain, err := resolveChain(m.descriptors, name)
		if err != nil {
			continue
		}
		for _, link := range chain {
			if link.kind == KindDynamic && !seen[link.name] {
				seen[link.name] = true
				order = append(order, link.name)
			}
		}
	}

	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}
