// Package node implements FileNode, the per-Location handle every other
// package operates on: a registry-interned identity wrapping an
// AttributeCache, with the query_info/enumerate_children/rename/get_parent
// operations of spec.md §4.E dispatched through it.
package node

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/filedesk/filecore/attrcache"
	"github.com/filedesk/filecore/corefs"
	"github.com/filedesk/filecore/registry"
)

// Backend is the generic filesystem collaborator a FileNode delegates I/O
// to, implemented by package localfs. Keeping this an interface (rather
// than importing localfs directly) is the same leaf-package-avoids-cycle
// split registry.Node uses: node must not import localfs, because a future
// second backend (an archive-mounted filesystem, say) would otherwise force
// every node user to link every backend.
type Backend interface {
	QueryInfo(ctx context.Context, loc corefs.Location) (corefs.Info, error)
	EnumerateChildren(ctx context.Context, loc corefs.Location) ([]corefs.DirEntry, error)
}

// Slot indices into every FileNode's AttributeCache. Declared once at
// package scope because every node installs the same fixed set of slots at
// construction, per spec.md §4.D.
const (
	slotInfo = iota
	slotChildren
	slotThumbnail
	numSlots
)

// FileNode is the concrete implementation of registry.Node/registry.Relocator.
type FileNode struct {
	reg *registry.Registry

	mu  sync.Mutex
	loc corefs.Location

	refs atomic.Int64

	cache *attrcache.Cache
	ids   [numSlots]attrcache.SlotID

	backend Backend

	starred atomic.Bool
}

// NewRegistry builds a *registry.Registry whose Factory produces FileNodes
// backed by backend. The self-referencing closure here (reg captured by
// the factory before New returns it) is the same pattern
// registry_test.go's newTestRegistry uses: the factory is never invoked
// until the first GetOrCreate, by which point reg already holds the real
// pointer.
func NewRegistry(backend Backend) *registry.Registry {
	var reg *registry.Registry
	reg = registry.New(func(loc corefs.Location) registry.Node {
		n := &FileNode{
			reg:     reg,
			loc:     loc,
			cache:   attrcache.New(),
			backend: backend,
		}
		n.ids[slotInfo] = n.cache.InstallSlot(nil, copyInfo)
		n.ids[slotChildren] = n.cache.InstallSlot(nil, nil)
		n.ids[slotThumbnail] = n.cache.InstallSlot(nil, nil)
		return n
	})
	return reg
}

func copyInfo(v interface{}) interface{} {
	info := v.(corefs.Info)
	return info.Copy()
}

// Location implements registry.Node.
func (n *FileNode) Location() corefs.Location {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.loc
}

// Relocate implements registry.Relocator. Only registry.Registry.Rekey may
// call this.
func (n *FileNode) Relocate(loc corefs.Location) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.loc = loc
	// The entry moved: whatever Info we had cached described the old path
	// (spec.md §4.C step 6). Only Info is invalidated here; the children
	// and thumbnail slots keep their values and states.
	n.cache.Invalidate(n.ids[slotInfo], false)
}

// Retain implements registry.Node.
func (n *FileNode) Retain() {
	n.refs.Add(1)
}

// Release implements registry.Node: dropping the last reference forgets
// this node from the registry (spec.md §9's weak-handle design).
func (n *FileNode) Release() {
	if n.refs.Add(-1) == 0 {
		n.reg.Forget(n.Location(), n)
	}
}

// Cache exposes the node's AttributeCache to the concrete task bodies in
// package nodetasks, which are the only code allowed to call SetPending/
// SetValue directly (query_info etc. are plain functions over *FileNode,
// not methods, precisely so this package stays free of any particular
// task-dispatch policy).
func (n *FileNode) Cache() *attrcache.Cache { return n.cache }

// InfoSlot, ChildrenSlot and ThumbnailSlot expose the fixed slot ids so
// nodetasks bodies can call Cache().SetValue(node.InfoSlot, ...) etc.
// without this package depending on task or nodetasks.
func (n *FileNode) InfoSlot() attrcache.SlotID      { return n.ids[slotInfo] }
func (n *FileNode) ChildrenSlot() attrcache.SlotID  { return n.ids[slotChildren] }
func (n *FileNode) ThumbnailSlot() attrcache.SlotID { return n.ids[slotThumbnail] }

// CachedInfo implements the stale-while-pending policy resolved in
// SPEC_FULL.md: if a value (possibly stale) is present, return it
// immediately regardless of the slot's state; only report "absent" when no
// value has ever been produced.
func (n *FileNode) CachedInfo() (corefs.Info, bool) {
	v, ok := n.cache.GetValue(n.ids[slotInfo], true)
	if !ok {
		return corefs.Info{}, false
	}
	return v.(corefs.Info), true
}

// CachedChildren is CachedInfo's counterpart for enumerate_children.
func (n *FileNode) CachedChildren() ([]corefs.DirEntry, bool) {
	v, ok := n.cache.GetValue(n.ids[slotChildren], false)
	if !ok {
		return nil, false
	}
	return v.([]corefs.DirEntry), true
}

// InfoState/ChildrenState let a caller decide whether to kick off a
// refresh task: Valid means trust the cache outright, Pending means a
// refresh is already in flight (stale value, if any, still usable per the
// policy above), Invalid means no refresh is running and the caller should
// start one.
func (n *FileNode) InfoState() attrcache.State     { return n.cache.State(n.ids[slotInfo]) }
func (n *FileNode) ChildrenState() attrcache.State { return n.cache.State(n.ids[slotChildren]) }

// Backend returns the filesystem collaborator this node delegates I/O to,
// for nodetasks bodies to call QueryInfo/EnumerateChildren on.
func (n *FileNode) Backend() Backend { return n.backend }

// SetStarred/IsStarred mirror the starred bit package tag maintains
// out-of-band (the TagManager is the source of truth; this is a cache of
// its last known value so UI code can read it without a lookup).
func (n *FileNode) SetStarred(v bool) { n.starred.Store(v) }
func (n *FileNode) IsStarred() bool   { return n.starred.Load() }

// Parent implements spec.md §4.E's get_parent: the FileNode for this node's
// current location's parent, or false if the location is a filesystem root.
// There is no stored parent pointer (SPEC_FULL.md §9: a renamed subtree
// would otherwise leave cyclic or stale parent links behind it); the parent
// is re-derived from the node's current Location and re-interned through
// the same registry on every call, so it always reflects whatever the tree
// looks like right now.
func (n *FileNode) Parent(reg *registry.Registry) (*FileNode, bool) {
	parentLoc, ok := n.Location().Parent()
	if !ok {
		return nil, false
	}
	return reg.GetOrCreate(parentLoc).(*FileNode), true
}
