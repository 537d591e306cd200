// Package registry implements the process-wide FileRegistry of spec.md
// §4.C: it interns one Node per Location, and re-keys a Node in place on
// rename without ever handing out a second identity for the same entry.
package registry

import (
	"sync"

	"github.com/filedesk/filecore/corefs"
)

// Node is anything the registry can intern. FileNode (package node)
// implements this; the registry never constructs a Node itself, it only
// tracks one built by Factory.
type Node interface {
	Location() corefs.Location

	// Retain/Release implement the reference-counted "weak handle" design
	// from spec.md §9: the registry hands out a new strong reference on
	// every GetOrCreate/Lookup hit, and the node's own drop path (the last
	// Release) removes it from the registry under the registry's lock,
	// making "the last strong reference's drop" the canonical forgotten
	// moment, with no distinct deletion call required from clients.
	Retain()
	Release()
}

// Relocator is implemented by Nodes whose Location the registry is allowed
// to overwrite — exclusively during Rekey, under the registry's lock, per
// spec.md §3's "Location field is read-mostly" invariant.
type Relocator interface {
	Node

	// Relocate overwrites the node's Location. It is exported only so
	// this package can call it across the package boundary; callers other
	// than Registry.Rekey must never call it directly, or they break the
	// "Location field is read-mostly" invariant of spec.md §3.
	Relocate(corefs.Location)
}

// Factory constructs a new Node for a Location that was not already
// interned. It is called with the registry's lock held, so it must not
// itself call back into the registry.
type Factory func(corefs.Location) Node

// Registry is the process-wide FileNode table. The zero value is not
// usable; construct with New.
type Registry struct {
	factory Factory

	// mu guards the whole table. Contention is acceptable per spec.md §5:
	// every operation under this lock is a short pointer manipulation,
	// never I/O.
	mu    sync.Mutex
	nodes map[corefs.Location]Node
}

// New returns a Registry that builds new Nodes with factory.
func New(factory Factory) *Registry {
	return &Registry{
		factory: factory,
		nodes:   make(map[corefs.Location]Node),
	}
}

// GetOrCreate returns the interned Node for loc, constructing one via the
// registry's Factory if none exists yet. Every call returns a new retained
// reference (spec.md property 1: two calls with no intervening deletion
// return the same underlying object).
func (r *Registry) GetOrCreate(loc corefs.Location) Node {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n, ok := r.nodes[loc]; ok {
		n.Retain()
		return n
	}
	n := r.factory(loc)
	n.Retain()
	r.nodes[loc] = n
	return n
}

// Lookup returns the interned Node for loc without constructing one, and
// false if no live Node exists for loc.
func (r *Registry) Lookup(loc corefs.Location) (Node, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[loc]
	if !ok {
		return nil, false
	}
	n.Retain()
	return n, true
}

// forget removes loc from the table. Called by a Node's Release when its
// refcount reaches zero; it is the "last strong reference's drop" moment
// spec.md §9 describes. No-op if the table no longer has this exact Node
// under loc (it may already have been re-keyed away).
func (r *Registry) forget(loc corefs.Location, n Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.nodes[loc]; ok && cur == n {
		delete(r.nodes, loc)
	}
}

// Forget is the hook a Node's Release implementation calls once its
// refcount reaches zero. Exported so package node can call it without this
// package reaching back into node's internals.
func (r *Registry) Forget(loc corefs.Location, n Node) {
	r.forget(loc, n)
}

// Rekey implements spec.md §4.C's rename path, steps 1-4 (the Info
// invalidation and signal emission, steps 5-6, are the caller's
// responsibility — they belong to the node, not the registry). Rekey
// returns an error if newLoc is already occupied by a different live node,
// which should never happen if the caller follows the precondition that the
// ChangeBus has already invalidated any conflicting node.
func (r *Registry) Rekey(n Relocator, newLoc corefs.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	oldLoc := n.Location()
	if existing, ok := r.nodes[newLoc]; ok && existing != Node(n) {
		return corefs.New(corefs.KindExists, "rekey target already occupied")
	}

	delete(r.nodes, oldLoc)
	r.nodes[newLoc] = n
	n.Relocate(newLoc)
	return nil
}

// Len reports how many live nodes are currently interned, for tests and
// diagnostics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.nodes)
}
