package nodetasks

import (
	"context"

	"github.com/filedesk/filecore/changebus"
	"github.com/filedesk/filecore/corefs"
	"github.com/filedesk/filecore/node"
	"github.com/filedesk/filecore/task"
)

// Renamer is the narrow capability a rename task body needs from the
// filesystem collaborator. A separate interface from node.Backend because
// not every Backend need support mutation (a read-only archive-mounted
// backend, say, could implement node.Backend without this).
type Renamer interface {
	Rename(ctx context.Context, from, to corefs.Location) error
}

// Rename implements spec.md §4.E's rename path: dispatch a RenameTask on
// the pool runner, and on success publish Renamed through the ChangeBus,
// which re-keys the registry and invalidates the node's Info slot (via
// node.FileNode.Relocate) and emits renamed/children-changed.
func Rename(parent context.Context, n *node.FileNode, backend Renamer, newName string, bus *changebus.Bus, pool *task.Pool, returnTo *task.Loop, continuation func(corefs.Location, error)) {
	from := n.Location()
	to := from
	if parentLoc, ok := from.Parent(); ok {
		to = parentLoc.Child(newName)
	}

	t := task.NewTask(parent, returnTo, func(ctx context.Context) (interface{}, error) {
		if err := backend.Rename(ctx, from, to); err != nil {
			return nil, err
		}
		return to, nil
	})
	t.OnFinished(func(result interface{}, err error) {
		if err != nil {
			continuation(corefs.Location{}, err)
			return
		}
		to := result.(corefs.Location)
		bus.Publish(changebus.Event{Kind: changebus.Renamed, From: from, To: to})
		continuation(to, nil)
	})
	pool.Submit(t)
}

// RenameBatchResult is one entry's outcome from RenameMany, which
// implements spec.md §4.G item 5: a {location -> new display name} map
// where each entry is attempted independently and per-entry failures are
// reported without aborting the batch.
type RenameBatchResult struct {
	From corefs.Location
	To   corefs.Location
	Err  error
}

// RenameMany runs one independent Rename task per entry rather than a
// task.Batch, so a failure never aborts the other entries (spec.md §7's
// batch-failure policy: unlike Batch.run's stop-on-first-error behavior, a
// rename batch always runs every entry and collects per-entry results).
func RenameMany(parent context.Context, targets map[*node.FileNode]string, backend Renamer, bus *changebus.Bus, pool *task.Pool, returnTo *task.Loop, continuation func([]RenameBatchResult)) {
	results := make([]RenameBatchResult, 0, len(targets))
	remaining := len(targets)
	if remaining == 0 {
		continuation(results)
		return
	}

	var mu resultCollector
	mu.total = remaining
	mu.onDone = continuation

	for n, newName := range targets {
		n, newName := n, newName
		Rename(parent, n, backend, newName, bus, pool, returnTo, func(to corefs.Location, err error) {
			mu.add(RenameBatchResult{From: n.Location(), To: to, Err: err})
		})
	}
}

// resultCollector accumulates RenameBatchResult values delivered on
// (potentially) different return-loop turns and fires onDone once every
// expected result has arrived. It is intentionally not safe for use from
// multiple goroutines concurrently calling add without a shared return
// loop serializing them, mirroring the rest of this package's assumption
// that continuations run on a single-threaded context runner.
type resultCollector struct {
	total   int
	results []RenameBatchResult
	onDone  func([]RenameBatchResult)
}

func (c *resultCollector) add(r RenameBatchResult) {
	c.results = append(c.results, r)
	if len(c.results) == c.total {
		c.onDone(c.results)
	}
}
