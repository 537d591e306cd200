package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/filedesk/filecore/changebus"
	"github.com/filedesk/filecore/corefs"
	"github.com/filedesk/filecore/node"
	"github.com/filedesk/filecore/nodetasks"
	"github.com/filedesk/filecore/task"
)

var renameCmd = &cobra.Command{
	Use:   "rename PATH NEW-NAME",
	Short: "Rename the entry at PATH to NEW-NAME",
	Args:  cobra.ExactArgs(2),
	RunE:  runRename,
}

func runRename(cmd *cobra.Command, args []string) error {
	path, newName := args[0], args[1]
	h := newHarness("rename")
	defer h.close()

	bus := changebus.New(h.reg, loopReturnContext{h.loop}, changebus.Signals{})
	n := h.nodeFor(path)

	var to corefs.Location
	err := withTimeout(func(ctx context.Context, done func(error)) {
		nodetasks.Rename(ctx, n, h.backend, newName, bus, h.pool, h.loop, func(result corefs.Location, rerr error) {
			to = result
			done(rerr)
		})
	})
	if err != nil {
		return fmt.Errorf("rename failed: %w", err)
	}
	fmt.Printf("renamed to: %s\n", to.String())
	return nil
}

// loopReturnContext implements changebus.ReturnContext with a single
// fixed loop, the same shape the package's own tests use when every
// FileNode in play shares one return loop.
type loopReturnContext struct{ loop *task.Loop }

func (c loopReturnContext) LoopFor(n *node.FileNode) *task.Loop { return c.loop }
