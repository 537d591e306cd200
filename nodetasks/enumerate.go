package nodetasks

import (
	"context"

	"github.com/filedesk/filecore/attrcache"
	"github.com/filedesk/filecore/corefs"
	"github.com/filedesk/filecore/node"
	"github.com/filedesk/filecore/registry"
	"github.com/filedesk/filecore/task"
)

// EnumerateChildren implements spec.md §4.E's enumerate_children: consult
// the Children slot identically to query_info, and on a cache miss run an
// EnumerateTask that populates both the parent's Children slot and each
// child's own Info slot in a single pass, so the caller never needs a
// second round trip to display what it just listed.
func EnumerateChildren(parent context.Context, n *node.FileNode, reg *registry.Registry, pool *task.Pool, returnTo *task.Loop, continuation func([]*node.FileNode, error)) {
	if children, ok := n.CachedChildren(); ok && n.ChildrenState() != attrcache.Invalid {
		continuation(resolveChildren(reg, children), nil)
		return
	}

	n.Cache().SetPending(n.ChildrenSlot())
	t := task.NewTask(parent, returnTo, func(ctx context.Context) (interface{}, error) {
		return n.Backend().EnumerateChildren(ctx, n.Location())
	})
	t.OnFinished(func(result interface{}, err error) {
		if err != nil {
			n.Cache().Invalidate(n.ChildrenSlot(), false)
			continuation(nil, err)
			return
		}
		entries := result.([]corefs.DirEntry)
		children := make([]*node.FileNode, 0, len(entries))
		for _, entry := range entries {
			childNode := reg.GetOrCreate(entry.Location).(*node.FileNode)
			childNode.Cache().SetPending(childNode.InfoSlot())
			childNode.Cache().SetValue(childNode.InfoSlot(), entry.Info)
			children = append(children, childNode)
		}
		n.Cache().SetValue(n.ChildrenSlot(), entries)
		continuation(children, nil)
	})
	pool.Submit(t)
}

// resolveChildren turns a cached []corefs.DirEntry back into live
// *node.FileNode handles. The Children slot stores locations rather than
// node pointers directly so a cached listing never pins child nodes alive
// past their own reference count reaching zero; resolving through the
// registry re-interns (or re-creates) them on demand.
func resolveChildren(reg *registry.Registry, entries []corefs.DirEntry) []*node.FileNode {
	children := make([]*node.FileNode, 0, len(entries))
	for _, entry := range entries {
		children = append(children, reg.GetOrCreate(entry.Location).(*node.FileNode))
	}
	return children
}
