package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/filedesk/filecore/corefs"
	"github.com/filedesk/filecore/node"
	"github.com/filedesk/filecore/nodetasks"
)

var selfTestCmd = &cobra.Command{
	Use:   "self-test PATH",
	Short: "Construct a node for PATH, confirm identity, and fetch its info and children",
	Args:  cobra.ExactArgs(1),
	RunE:  runSelfTest,
}

func runSelfTest(cmd *cobra.Command, args []string) error {
	path := args[0]
	h := newHarness("self-test")
	defer h.close()

	n := h.nodeFor(path)
	if again := h.nodeFor(path); again != n {
		return fmt.Errorf("registry returned distinct nodes for the same location: identity is not stable")
	}

	var info corefs.Info
	queryErr := withTimeout(func(ctx context.Context, done func(error)) {
		nodetasks.QueryInfo(ctx, n, h.pool, h.loop, func(result corefs.Info, err error) {
			info = result
			done(err)
		})
	})
	if queryErr != nil {
		return fmt.Errorf("query_info failed: %w", queryErr)
	}
	fmt.Printf("identity: ok\ndisplay-name: %s\nsize: %d\nis-dir: %v\n", info.DisplayName, info.Size, info.IsDir)

	if !info.IsDir {
		return nil
	}

	var children []*node.FileNode
	childErr := withTimeout(func(ctx context.Context, done func(error)) {
		nodetasks.EnumerateChildren(ctx, n, h.reg, h.pool, h.loop, func(result []*node.FileNode, err error) {
			children = result
			done(err)
		})
	})
	if childErr != nil {
		return fmt.Errorf("enumerate_children failed: %w", childErr)
	}
	fmt.Printf("children: %d\n", len(children))
	return nil
}
