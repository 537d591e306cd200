package nodetasks

import (
	"context"

	"github.com/filedesk/filecore/corefs"
	"github.com/filedesk/filecore/node"
	"github.com/filedesk/filecore/tag"
	"github.com/filedesk/filecore/task"
)

// Star/Unstar are the concrete task bodies spec.md §2 item 4 lists
// alongside rename/thumbnail/hard-link: a bbolt write is cheap but still
// disk I/O, so it runs on the pool runner like every other mutation, with
// the node's cached starred bit and the TagManager's persisted set updated
// together before the continuation runs.
func Star(parent context.Context, n *node.FileNode, mgr *tag.Manager, pool *task.Pool, returnTo *task.Loop, continuation func(error)) {
	setStarred(parent, n, mgr, true, pool, returnTo, continuation)
}

func Unstar(parent context.Context, n *node.FileNode, mgr *tag.Manager, pool *task.Pool, returnTo *task.Loop, continuation func(error)) {
	setStarred(parent, n, mgr, false, pool, returnTo, continuation)
}

func setStarred(parent context.Context, n *node.FileNode, mgr *tag.Manager, starred bool, pool *task.Pool, returnTo *task.Loop, continuation func(error)) {
	loc := n.Location()
	t := task.NewTask(parent, returnTo, func(ctx context.Context) (interface{}, error) {
		locs := []corefs.Location{loc}
		if starred {
			return nil, mgr.Star(locs)
		}
		return nil, mgr.Unstar(locs)
	})
	t.OnFinished(func(_ interface{}, err error) {
		if err == nil {
			n.SetStarred(starred)
		}
		continuation(err)
	})
	pool.Submit(t)
}
