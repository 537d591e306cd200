package fileops

import (
	"context"
	"io"
	"os"

	"github.com/filedesk/filecore/changebus"
	"github.com/filedesk/filecore/corefs"
	"github.com/filedesk/filecore/corelog"
	"github.com/filedesk/filecore/localfs"
	"github.com/filedesk/filecore/undo"
)

// Ops bundles the filesystem and eventing collaborators every concrete
// FileOperations function needs, so each operation's signature stays
// short. Constructed once per FileOperations user (typically a process
// singleton, but tests build their own). Undo is optional: a nil Manager
// just means "nobody asked this Ops for undo support," and no undo record
// is pushed.
type Ops struct {
	Backend   *localfs.Client
	Bus       *changebus.Bus
	Undo      *undo.Manager
	Inhibitor PowerInhibitor
}

// CopyResult reports what Copy/Move actually did, for undo-record
// construction.
type CopyResult struct {
	ChosenNames []string // destination basenames actually used, in source order
	DestLocs    []corefs.Location
}

// Copy implements spec.md §4.G item 1's Copy half: depth-first traversal
// of sources, each verified against destDir, transferred, and
// uniquified/prompted on collision. On Skip/Replace/Merge "All" the choice
// is remembered for the remainder of this call.
func Copy(ctx context.Context, ops *Ops, sources []corefs.Location, destDir corefs.Location, prompter Prompter, progress *ProgressInfo) (CopyResult, error) {
	return transfer(ctx, ops, sources, destDir, prompter, progress, false)
}

// Move is Copy's sibling: it prefers a same-filesystem rename and falls
// back to copy+delete-original, matching backend/local/local.go's
// Fs.Move, which tries os.Rename before anything else.
func Move(ctx context.Context, ops *Ops, sources []corefs.Location, destDir corefs.Location, prompter Prompter, progress *ProgressInfo) (CopyResult, error) {
	return transfer(ctx, ops, sources, destDir, prompter, progress, true)
}

func transfer(ctx context.Context, ops *Ops, sources []corefs.Location, destDir corefs.Location, prompter Prompter, progress *ProgressInfo, removeSource bool) (CopyResult, error) {
	verb := "Copying"
	if removeSource {
		verb = "Moving"
	}
	defer beginInhibit(ops, verb+" files").Release()

	result := CopyResult{}
	policy := &conflictPolicy{}

	if progress != nil {
		progress.SetTotal(int64(len(sources)))
	}

	for _, src := range sources {
		select {
		case <-ctx.Done():
			return result, corefs.Wrap(corefs.KindCancelled, ctx.Err())
		default:
		}

		if progress != nil {
			progress.SetDetails(src.Base())
		}

		destLoc, skipped, err := transferOne(ctx, ops, src, destDir, prompter, policy, removeSource)
		if err != nil {
			return result, err
		}
		if !skipped {
			result.ChosenNames = append(result.ChosenNames, destLoc.Base())
			result.DestLocs = append(result.DestLocs, destLoc)
			ops.Bus.Publish(changebus.Event{Kind: changebus.Created, To: destLoc})
			if removeSource {
				ops.Bus.Publish(changebus.Event{Kind: changebus.Deleted, From: src})
			}
		}
		if progress != nil {
			progress.AddDone(1)
		}
	}

	if ops.Undo != nil && len(result.ChosenNames) > 0 {
		pushTransferUndo(ops, sources, destDir, result, removeSource)
	}
	return result, nil
}

// pushTransferUndo records one undo entry for the whole transfer call.
// SourceURI is the first source's parent: the common case for a
// multi-select copy/move is that every source shares one parent
// directory, and ChosenNames always equals each source's own basename
// here (transferOne never renames on collision, only replaces or merges
// in place), so SourceURI.Child(name) recovers each original location.
func pushTransferUndo(ops *Ops, sources []corefs.Location, destDir corefs.Location, result CopyResult, wasMove bool) {
	kind := corefs.OpCopy
	if wasMove {
		kind = corefs.OpMove
	}
	srcParent := sources[0]
	if p, ok := sources[0].Parent(); ok {
		srcParent = p
	}
	ops.Undo.Push(corefs.UndoRecord{
		Kind:           kind,
		SourceURI:      srcParent,
		DestinationURI: destDir,
		ChosenNames:    result.ChosenNames,
	})
}

func transferOne(ctx context.Context, ops *Ops, src, destDir corefs.Location, prompter Prompter, policy *conflictPolicy, removeSource bool) (corefs.Location, bool, error) {
	destLoc := destDir.Child(src.Base())

	if ops.Backend.Exists(destLoc) {
		resp := ResponseReplace
		if prompter != nil {
			p := NewPrompt("An item with this name already exists", destLoc.String(),
				ResponseCancel, ResponseSkip, ResponseSkipAll, ResponseReplace, ResponseReplaceAll, ResponseMerge, ResponseMergeAll)
			resp = policy.resolve(prompter, p)
		}
		switch resp {
		case ResponseCancel:
			return corefs.Location{}, false, corefs.ErrCancelled
		case ResponseSkip:
			return corefs.Location{}, true, nil
		case ResponseReplace, ResponseReplaceAll, ResponseMerge, ResponseMergeAll:
			// fall through to the transfer below, overwriting/merging in place
		default:
			return corefs.Location{}, true, nil
		}
	}

	if removeSource {
		// same-filesystem fast path; anything os.Rename refuses (a
		// cross-device move, a non-empty directory in the way) falls
		// through to copy+delete below
		if err := ops.Backend.Rename(ctx, src, destLoc); err == nil {
			return destLoc, false, nil
		}
	}

	info, err := ops.Backend.QueryInfo(ctx, src)
	if err != nil {
		return corefs.Location{}, false, err
	}

	if info.IsDir {
		if err := copyDirTree(ctx, ops, src, destLoc); err != nil {
			return corefs.Location{}, false, err
		}
	} else {
		if err := copyFileWithRetry(ctx, ops, src, destLoc); err != nil {
			return corefs.Location{}, false, err
		}
	}

	if removeSource {
		if err := removeTree(src); err != nil {
			corelog.Warnf(nil, "fileops: move left source behind after copy: %v", err)
		}
	}
	return destLoc, false, nil
}

// copyFileWithRetry performs the byte copy, uniquifying the destination
// name if the target filesystem rejects it outright (spec.md §4.G item 1:
// "when the target filesystem rejects a name, the core suffixes ' (2)',
// ' (3)' … until acceptance").
func copyFileWithRetry(ctx context.Context, ops *Ops, src, dest corefs.Location) error {
	if err := copyFile(src.Path, dest.Path); err != nil {
		if corefs.KindOf(err) == corefs.KindInvalidFilename {
			if parentLoc, ok := dest.Parent(); ok {
				dest = Uniquify(ops.Backend, parentLoc, dest.Base())
				return copyFile(src.Path, dest.Path)
			}
		}
		return err
	}
	return nil
}

func copyFile(srcPath, destPath string) error {
	in, err := os.Open(srcPath)
	if err != nil {
		return corefs.Wrap(corefs.KindIO, err)
	}
	defer in.Close()

	out, err := os.Create(destPath)
	if err != nil {
		if os.IsNotExist(err) {
			return corefs.Wrap(corefs.KindInvalidFilename, err)
		}
		return corefs.Wrap(corefs.KindIO, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return corefs.Wrap(corefs.KindIO, err)
	}
	return corefs.Wrap(corefs.KindIO, out.Close())
}

func copyDirTree(ctx context.Context, ops *Ops, src, dest corefs.Location) error {
	if err := os.MkdirAll(dest.Path, 0o755); err != nil {
		return corefs.Wrap(corefs.KindIO, err)
	}
	entries, err := os.ReadDir(src.Path)
	if err != nil {
		return corefs.Wrap(corefs.KindIO, err)
	}
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return corefs.Wrap(corefs.KindCancelled, ctx.Err())
		default:
		}
		childSrc := src.Child(entry.Name())
		childDest := dest.Child(entry.Name())
		if entry.IsDir() {
			if err := copyDirTree(ctx, ops, childSrc, childDest); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(childSrc.Path, childDest.Path); err != nil {
			return err
		}
	}
	return nil
}

func removeTree(loc corefs.Location) error {
	return os.RemoveAll(loc.Path)
}
