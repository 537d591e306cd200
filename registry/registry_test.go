package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filedesk/filecore/corefs"
)

// fakeNode is the minimal Node/Relocator implementation used to exercise
// the registry in isolation from package node.
type fakeNode struct {
	mu       sync.Mutex
	loc      corefs.Location
	refs     int
	registry *Registry
	forgot   bool
}

func newFakeNode(r *Registry, loc corefs.Location) *fakeNode {
	return &fakeNode{loc: loc, registry: r}
}

func (n *fakeNode) Location() corefs.Location {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.loc
}

func (n *fakeNode) Retain() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.refs++
}

func (n *fakeNode) Release() {
	n.mu.Lock()
	n.refs--
	zero := n.refs == 0
	loc := n.loc
	n.mu.Unlock()
	if zero {
		n.registry.Forget(loc, n)
		n.mu.Lock()
		n.forgot = true
		n.mu.Unlock()
	}
}

func (n *fakeNode) Relocate(loc corefs.Location) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.loc = loc
}

func newTestRegistry() *Registry {
	var r *Registry
	r = New(func(loc corefs.Location) Node { return newFakeNode(r, loc) })
	return r
}

// S1: Identity.
func TestGetOrCreateIsIdentityStable(t *testing.T) {
	r := newTestRegistry()
	locA := corefs.ParseLocation("/tmp/a")
	locB := corefs.ParseLocation("/tmp/b")

	a1 := r.GetOrCreate(locA)
	a2 := r.GetOrCreate(locA)
	assert.Same(t, a1, a2, "two GetOrCreate calls for the same location must return the same node")

	b := r.GetOrCreate(locB)
	assert.NotSame(t, a1, b)
}

func TestLookupNonCreating(t *testing.T) {
	r := newTestRegistry()
	loc := corefs.ParseLocation("/tmp/missing")

	_, ok := r.Lookup(loc)
	assert.False(t, ok)

	created := r.GetOrCreate(loc)
	found, ok := r.Lookup(loc)
	require.True(t, ok)
	assert.Same(t, created, found)
}

// property 2: rename preserves identity.
func TestRekeyPreservesIdentity(t *testing.T) {
	r := newTestRegistry()
	loc1 := corefs.ParseLocation("/tmp/d/child_1")
	loc2 := corefs.ParseLocation("/tmp/d/renamed")

	n := r.GetOrCreate(loc1)
	fn := n.(*fakeNode)

	err := r.Rekey(fn, loc2)
	require.NoError(t, err)

	_, ok := r.Lookup(loc1)
	assert.False(t, ok, "old location must no longer resolve")

	found, ok := r.Lookup(loc2)
	require.True(t, ok)
	assert.Same(t, n, found)
	assert.Equal(t, loc2, n.Location())
}

func TestRekeyRejectsOccupiedTarget(t *testing.T) {
	r := newTestRegistry()
	loc1 := corefs.ParseLocation("/tmp/a")
	loc2 := corefs.ParseLocation("/tmp/b")

	a := r.GetOrCreate(loc1).(*fakeNode)
	r.GetOrCreate(loc2)

	err := r.Rekey(a, loc2)
	assert.Error(t, err)
	assert.Equal(t, corefs.KindExists, corefs.KindOf(err))
}

func TestReleaseToZeroForgetsNode(t *testing.T) {
	r := newTestRegistry()
	loc := corefs.ParseLocation("/tmp/a")

	n := r.GetOrCreate(loc) // refs=1
	assert.Equal(t, 1, r.Len())

	n.Release() // refs=0, forgets
	assert.Equal(t, 0, r.Len())

	_, ok := r.Lookup(loc)
	assert.False(t, ok)
}

func TestConcurrentGetOrCreateReturnsOneNode(t *testing.T) {
	r := newTestRegistry()
	loc := corefs.ParseLocation("/tmp/contended")

	const n = 64
	results := make([]Node, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			results[i] = r.GetOrCreate(loc)
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, results[0], results[i])
	}
}
