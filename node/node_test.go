package node

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filedesk/filecore/attrcache"
	"github.com/filedesk/filecore/corefs"
	"github.com/filedesk/filecore/registry"
)

type fakeBackend struct {
	info     corefs.Info
	children []corefs.DirEntry
	err      error
}

func (b *fakeBackend) QueryInfo(ctx context.Context, loc corefs.Location) (corefs.Info, error) {
	return b.info, b.err
}

func (b *fakeBackend) EnumerateChildren(ctx context.Context, loc corefs.Location) ([]corefs.DirEntry, error) {
	return b.children, b.err
}

func newTestNode(t *testing.T, backend Backend) (*registry.Registry, *FileNode) {
	t.Helper()
	reg := NewRegistry(backend)
	n := reg.GetOrCreate(corefs.ParseLocation("/tmp/a")).(*FileNode)
	return reg, n
}

func TestCachedInfoAbsentBeforeFirstLoad(t *testing.T) {
	_, n := newTestNode(t, &fakeBackend{})
	_, ok := n.CachedInfo()
	assert.False(t, ok)
	assert.Equal(t, attrcache.Invalid, n.InfoState())
}

func TestQueryInfoLifecycle(t *testing.T) {
	backend := &fakeBackend{info: corefs.Info{DisplayName: "a", Size: 10}}
	_, n := newTestNode(t, backend)

	n.Cache().SetPending(n.InfoSlot())
	assert.Equal(t, attrcache.Pending, n.InfoState())

	info, err := n.Backend().QueryInfo(context.Background(), n.Location())
	require.NoError(t, err)
	n.Cache().SetValue(n.InfoSlot(), info)

	assert.Equal(t, attrcache.Valid, n.InfoState())
	got, ok := n.CachedInfo()
	require.True(t, ok)
	assert.Equal(t, "a", got.DisplayName)
}

// stale-while-pending: invalidating without destroying the value still
// serves the old value while a fresh fetch is pending.
func TestStaleWhilePendingServesOldValue(t *testing.T) {
	_, n := newTestNode(t, &fakeBackend{})

	n.Cache().SetPending(n.InfoSlot())
	n.Cache().SetValue(n.InfoSlot(), corefs.Info{DisplayName: "old"})

	n.Cache().Invalidate(n.InfoSlot(), false)
	n.Cache().SetPending(n.InfoSlot())

	got, ok := n.CachedInfo()
	require.True(t, ok)
	assert.Equal(t, "old", got.DisplayName, "stale value must remain servable while a refresh is pending")
	assert.Equal(t, attrcache.Pending, n.InfoState())
}

func TestRelocateInvalidatesInfoOnly(t *testing.T) {
	_, n := newTestNode(t, &fakeBackend{})

	n.Cache().SetPending(n.InfoSlot())
	n.Cache().SetValue(n.InfoSlot(), corefs.Info{DisplayName: "old"})
	n.Cache().SetPending(n.ChildrenSlot())
	n.Cache().SetValue(n.ChildrenSlot(), []corefs.DirEntry{{Location: corefs.ParseLocation("/tmp/a/c")}})

	newLoc := corefs.ParseLocation("/tmp/renamed")
	n.Relocate(newLoc)

	assert.Equal(t, newLoc, n.Location())
	assert.Equal(t, attrcache.Invalid, n.InfoState(), "info describes the old path, must be invalidated")
	assert.Equal(t, attrcache.Valid, n.ChildrenState(), "Relocate invalidates only the Info slot")
}

func TestReleaseForgetsFromRegistry(t *testing.T) {
	reg, n := newTestNode(t, &fakeBackend{})
	loc := n.Location()
	assert.Equal(t, 1, reg.Len())

	n.Release()
	assert.Equal(t, 0, reg.Len())

	_, ok := reg.Lookup(loc)
	assert.False(t, ok)
}

func TestStarredRoundTrip(t *testing.T) {
	_, n := newTestNode(t, &fakeBackend{})
	assert.False(t, n.IsStarred())
	n.SetStarred(true)
	assert.True(t, n.IsStarred())
}

func TestParentReturnsRegistryInternedAncestor(t *testing.T) {
	reg, n := newTestNode(t, &fakeBackend{})

	parent, ok := n.Parent(reg)
	require.True(t, ok)
	assert.Equal(t, corefs.ParseLocation("/tmp"), parent.Location())

	// Same identity guarantee as any other GetOrCreate call for the same
	// location.
	again, ok := n.Parent(reg)
	require.True(t, ok)
	assert.Same(t, parent, again)
}

func TestParentOfRootIsFalse(t *testing.T) {
	reg := NewRegistry(&fakeBackend{})
	root := reg.GetOrCreate(corefs.ParseLocation("/")).(*FileNode)

	_, ok := root.Parent(reg)
	assert.False(t, ok)
}
