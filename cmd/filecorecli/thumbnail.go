package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/filedesk/filecore/corefs"
	"github.com/filedesk/filecore/nodetasks"
)

var thumbnailCmd = &cobra.Command{
	Use:   "thumbnail PATH",
	Short: "Generate (or reuse) a thumbnail for PATH and print its cache path",
	Args:  cobra.ExactArgs(1),
	RunE:  runThumbnail,
}

func runThumbnail(cmd *cobra.Command, args []string) error {
	path := args[0]
	h := newHarness("thumbnail")
	defer h.close()

	n := h.nodeFor(path)

	// Populate info first: the thumbnail task needs the content type and
	// size cached on the node to decide native-decode vs external paths.
	queryErr := withTimeout(func(ctx context.Context, done func(error)) {
		nodetasks.QueryInfo(ctx, n, h.pool, h.loop, func(_ corefs.Info, err error) { done(err) })
	})
	if queryErr != nil {
		return fmt.Errorf("query_info failed: %w", queryErr)
	}

	thumbnailer := &nodetasks.ExternalThumbnailer{Commands: map[string]string{}}

	var result nodetasks.ThumbnailResult
	err := withTimeout(func(ctx context.Context, done func(error)) {
		nodetasks.Thumbnail(ctx, n, thumbnailer, "filecorecli", h.pool, h.loop, func(res nodetasks.ThumbnailResult, terr error) {
			result = res
			done(terr)
		})
	})
	if err != nil {
		return fmt.Errorf("thumbnail failed: %w", err)
	}
	if result.Failed {
		return fmt.Errorf("thumbnail generation recorded as failed for %s", path)
	}
	fmt.Printf("thumbnail: %s\n", result.Path)
	return nil
}
