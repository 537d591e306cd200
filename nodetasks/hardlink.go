package nodetasks

import (
	"context"

	"github.com/filedesk/filecore/changebus"
	"github.com/filedesk/filecore/corefs"
	"github.com/filedesk/filecore/node"
	"github.com/filedesk/filecore/task"
)

// Hardlinker is the narrow capability a hard-link task body needs.
type Hardlinker interface {
	Hardlink(loc, linkLoc corefs.Location) error
}

// Hardlink implements the hard-link concrete task body spec.md §2 lists
// alongside query-info/enumerate-children/rename/thumbnail: create linkLoc
// as a hard link to n's entry, and on success publish Created through the
// ChangeBus so the destination directory's listing refreshes.
func Hardlink(parent context.Context, n *node.FileNode, backend Hardlinker, linkLoc corefs.Location, bus *changebus.Bus, pool *task.Pool, returnTo *task.Loop, continuation func(error)) {
	loc := n.Location()
	t := task.NewTask(parent, returnTo, func(ctx context.Context) (interface{}, error) {
		return nil, backend.Hardlink(loc, linkLoc)
	})
	t.OnFinished(func(_ interface{}, err error) {
		if err == nil {
			bus.Publish(changebus.Event{Kind: changebus.Created, To: linkLoc})
		}
		continuation(err)
	})
	pool.Submit(t)
}
