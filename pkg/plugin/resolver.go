package plugin

import (
	"github.com/samber/oops"
)

// resolveChain computes the load order for name: every dependency precedes
// its dependent and no name appears twice. Ties among independent
// dependencies are broken by declaration order in the manifest.
//
// Each call owns its traversal state, so resolving one plugin while a
// resolve of another is in flight cannot corrupt either traversal.
func resolveChain(table map[string]*Descriptor, name string) ([]*Descriptor, error) {
	r := &resolution{
		table:    table,
		visiting: make(map[string]bool),
		finished: make(map[string]bool),
	}
	if err := r.visit(name); err != nil {
		return nil, err
	}
	return r.order, nil
}

// resolution holds per-call traversal state.
type resolution struct {
	table    map[string]*Descriptor
	visiting map[string]bool
	finished map[string]bool
	chain    []string
	order    []*Descriptor
}

func (r *resolution) visit(name string) error {
	if r.finished[name] {
		return nil
	}
	if r.visiting[name] {
		// Covers self-cycles and longer cycles uniformly.
		return oops.Code(CodeCyclicDependency).
			With("plugin", name).
			With("chain", append(append([]string{}, r.chain...), name)).
			Errorf("dependency cycle involving %q", name)
	}

	d, ok := r.table[name]
	if !ok {
		return oops.Code(CodeMissingDependency).
			With("plugin", name).
			With("chain", append([]string{}, r.chain...)).
			Errorf("dependency %q is not known", name)
	}
	if d.metaErr != nil {
		return oops.Code(CodeMissingDependency).
			With("plugin", name).
			With("chain", append([]string{}, r.chain...)).
			Wrapf(d.metaErr, "dependency %q is unresolved", name)
	}

	r.visiting[name] = true
	r.chain = append(r.chain, name)
	for _, dep := range d.deps {
		if err := r.visit(dep); err != nil {
			return err
		}
	}
	r.chain = r.chain[:len(r.chain)-1]
	delete(r.visiting, name)

	r.finished[name] = true
	r.order = append(r.order, d)
	return nil
}
