package fileops

import (
	"context"
	"os"
	"path/filepath"

	"github.com/filedesk/filecore/corefs"
)

// DeepCount is the tally spec.md §4.G item 8 asks for: a recursive walk of
// one directory accumulating counts and total size, with inode-based loop
// detection so a symlink cycle or bind-mounted loop can't recurse forever.
type DeepCount struct {
	DirectoryCount  int64
	FileCount       int64
	UnreadableCount int64
	TotalBytes      int64
}

type inodeKey struct {
	fsID  uint64
	inode uint64
}

// ComputeDeepCount walks root to completion or until ctx is cancelled. A
// cancelled walk returns the partial DeepCount accumulated so far alongside
// ctx.Err(); per the "cancel-and-restart on the next reader" resolution
// (SPEC_FULL.md §9), the caller is expected to discard a cancelled result
// and issue a fresh ComputeDeepCount rather than resume it, the same
// collapse-and-rebuild discipline the worker pool applies to its own
// resize operation.
func ComputeDeepCount(ctx context.Context, root corefs.Location) (DeepCount, error) {
	seen := make(map[inodeKey]struct{})
	var result DeepCount
	err := walkCount(ctx, root.Path, seen, &result)
	return result, err
}

func walkCount(ctx context.Context, path string, seen map[inodeKey]struct{}, result *DeepCount) error {
	select {
	case <-ctx.Done():
		return corefs.Wrap(corefs.KindCancelled, ctx.Err())
	default:
	}

	fi, err := os.Lstat(path)
	if err != nil {
		result.UnreadableCount++
		return nil
	}

	if key, ok := statInodeKey(fi); ok {
		if _, dup := seen[key]; dup {
			return nil
		}
		seen[key] = struct{}{}
	}

	if fi.Mode()&os.ModeSymlink != 0 {
		// Symlinks are counted but never followed: following them is how
		// the inode loop this function guards against would happen in the
		// first place for a link pointing back up its own tree.
		result.FileCount++
		return nil
	}

	if !fi.IsDir() {
		result.FileCount++
		result.TotalBytes += fi.Size()
		return nil
	}

	result.DirectoryCount++

	entries, err := os.ReadDir(path)
	if err != nil {
		result.UnreadableCount++
		return nil
	}
	for _, entry := range entries {
		if err := walkCount(ctx, filepath.Join(path, entry.Name()), seen, result); err != nil {
			return err
		}
	}
	return nil
}
