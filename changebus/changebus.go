// Package changebus implements the ChangeBus of spec.md §4.F: the single
// inbound point filesystem mutations (whether driven by this module's own
// FileOperations or an external OS-level monitor) arrive through, turned
// into registry re-keying, attribute-cache invalidation, and signal
// emission on each affected node's owning event loop.
package changebus

import (
	"github.com/filedesk/filecore/corefs"
	"github.com/filedesk/filecore/node"
	"github.com/filedesk/filecore/registry"
	"github.com/filedesk/filecore/task"
)

// EventKind classifies the four event shapes the bus accepts.
type EventKind int

const (
	Created EventKind = iota
	Deleted
	Renamed
	Moved
)

// Event is one inbound filesystem mutation notification.
type Event struct {
	Kind EventKind
	From corefs.Location // Renamed/Moved/Deleted
	To   corefs.Location // Renamed/Moved/Created
}

// Signals is the set of callbacks the bus fires. Each is invoked already
// posted onto the correct return Loop; subscribers never need to hop
// contexts themselves.
type Signals struct {
	Renamed         func(n *node.FileNode, to corefs.Location)
	ChildrenChanged func(parent *node.FileNode)
}

// ReturnContext resolves which *task.Loop owns a given node, for dispatch
// of the signals above. In this module every node's owning context is the
// loop it was last touched from; nodetasks/fileops supply this via a
// small adapter rather than changebus hardcoding a single global loop.
type ReturnContext interface {
	LoopFor(n *node.FileNode) *task.Loop
}

// Bus is the process-wide ChangeBus. Construct one with New per registry;
// there is exactly one live registry per process in this module's design,
// so in practice Bus is also a singleton.
type Bus struct {
	reg    *registry.Registry
	ctx    ReturnContext
	sig    Signals
	batchC chan Event
}

// New returns a Bus wired to reg, delivering signals per sig, using ctx to
// resolve each receiving node's owning loop.
func New(reg *registry.Registry, ctx ReturnContext, sig Signals) *Bus {
	b := &Bus{reg: reg, ctx: ctx, sig: sig, batchC: make(chan Event, 256)}
	go b.coalesce()
	return b
}

// Publish enqueues ev for processing. Safe to call from any goroutine,
// including a FileOperations worker or an OS-level filesystem monitor
// callback.
func (b *Bus) Publish(ev Event) {
	b.batchC <- ev
}

// coalesce implements the event-coalescing/batching refinement of
// SPEC_FULL.md §10 item 4: bursts of events for the same parent directory
// (the common case during a multi-file copy or an external process writing
// many files at once) collapse into a single children-changed emission per
// parent per batching window, rather than one emission per file.
func (b *Bus) coalesce() {
	const maxBatch = 256
	for first := range b.batchC {
		batch := []Event{first}
	drain:
		for len(batch) < maxBatch {
			select {
			case ev := <-b.batchC:
				batch = append(batch, ev)
			default:
				break drain
			}
		}
		b.deliver(batch)
	}
}

func (b *Bus) deliver(batch []Event) {
	dirtyParents := map[corefs.Location]struct{}{}

	for _, ev := range batch {
		switch ev.Kind {
		case Created:
			if parentLoc, ok := ev.To.Parent(); ok {
				b.invalidateChildren(parentLoc)
				dirtyParents[parentLoc] = struct{}{}
			}

		case Deleted:
			if n, ok := b.reg.Lookup(ev.From); ok {
				fn := n.(*node.FileNode)
				fn.Cache().InvalidateAll()
				fn.Release()
			}
			if parentLoc, ok := ev.From.Parent(); ok {
				dirtyParents[parentLoc] = struct{}{}
			}

		case Renamed, Moved:
			b.rekey(ev.From, ev.To, dirtyParents)
		}
	}

	for parentLoc := range dirtyParents {
		if n, ok := b.reg.Lookup(parentLoc); ok {
			fn := n.(*node.FileNode)
			b.emitChildrenChanged(fn)
			fn.Release()
		}
	}
}

func (b *Bus) invalidateChildren(parentLoc corefs.Location) {
	n, ok := b.reg.Lookup(parentLoc)
	if !ok {
		return
	}
	fn := n.(*node.FileNode)
	fn.Cache().Invalidate(fn.ChildrenSlot(), false)
	fn.Release()
}

func (b *Bus) rekey(from, to corefs.Location, dirtyParents map[corefs.Location]struct{}) {
	n, ok := b.reg.Lookup(from)
	if !ok {
		// Nothing interned for the old location; still mark both parents
		// dirty so any open directory listing refreshes.
		if p, ok := from.Parent(); ok {
			dirtyParents[p] = struct{}{}
		}
		if p, ok := to.Parent(); ok {
			dirtyParents[p] = struct{}{}
		}
		return
	}
	fn := n.(*node.FileNode)
	defer fn.Release()

	if err := b.reg.Rekey(fn, to); err != nil {
		return
	}
	b.emitRenamed(fn, to)

	if p, ok := from.Parent(); ok {
		dirtyParents[p] = struct{}{}
	}
	if p, ok := to.Parent(); ok {
		dirtyParents[p] = struct{}{}
	}
}

func (b *Bus) emitRenamed(fn *node.FileNode, to corefs.Location) {
	if b.sig.Renamed == nil {
		return
	}
	loop := b.ctx.LoopFor(fn)
	if loop == nil {
		b.sig.Renamed(fn, to)
		return
	}
	loop.Post(func() { b.sig.Renamed(fn, to) })
}

func (b *Bus) emitChildrenChanged(parent *node.FileNode) {
	if b.sig.ChildrenChanged == nil {
		return
	}
	loop := b.ctx.LoopFor(parent)
	if loop == nil {
		b.sig.ChildrenChanged(parent)
		return
	}
	loop.Post(func() { b.sig.ChildrenChanged(parent) })
}
