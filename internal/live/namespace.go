package live

import (
	"sort"
	"sync/atomic"

	"github.com/cbegin/livepsg/internal/script"
)

type binding struct {
	value script.Value
	gen   uint64
}

// Namespace is one generation of score bindings. A namespace is mutated only
// while an update owns it; once published it is read-only.
type Namespace struct {
	bindings map[string]binding
	version  uint64
	gens     *atomic.Uint64
}

func newNamespace(gens *atomic.Uint64) *Namespace {
	return &Namespace{bindings: make(map[string]binding), gens: gens}
}

func (n *Namespace) clone() *Namespace {
	c := &Namespace{bindings: make(map[string]binding, len(n.bindings)), version: n.version, gens: n.gens}
	for k, v := range n.bindings {
		c.bindings[k] = v
	}
	return c
}

// Lookup returns the raw binding, which may be a lazy reference.
func (n *Namespace) Lookup(name string) (script.Value, bool) {
	b, ok := n.bindings[name]
	return b.value, ok
}

// Assign binds name. Rebinding an equal value keeps the old binding so
// unchanged definitions do not show up as updates.
func (n *Namespace) Assign(name string, v script.Value) {
	if old, ok := n.bindings[name]; ok && script.Equal(old.value, v) {
		return
	}
	n.bindings[name] = binding{value: v, gen: n.gens.Add(1)}
}

func (n *Namespace) Delete(name string) bool {
	if _, ok := n.bindings[name]; !ok {
		return false
	}
	delete(n.bindings, name)
	return true
}

// Generation identifies the current value of name; it changes whenever the
// name is rebound to a different value.
func (n *Namespace) Generation(name string) (uint64, bool) {
	b, ok := n.bindings[name]
	return b.gen, ok
}

// Version is bumped every time a namespace is published.
func (n *Namespace) Version() uint64 { return n.version }

func (n *Namespace) Names() []string {
	names := make([]string, 0, len(n.bindings))
	for k := range n.bindings {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Diff lists the names an update touched.
type Diff struct {
	Updated []string
	Deleted []string
}

func (d *Diff) Empty() bool { return len(d.Updated) == 0 && len(d.Deleted) == 0 }

func diff(before, after *Namespace) *Diff {
	d := &Diff{}
	for _, name := range after.Names() {
		b, ok := before.bindings[name]
		if !ok || b.gen != after.bindings[name].gen {
			d.Updated = append(d.Updated, name)
		}
	}
	for _, name := range before.Names() {
		if _, ok := after.bindings[name]; !ok {
			d.Deleted = append(d.Deleted, name)
		}
	}
	return d
}
