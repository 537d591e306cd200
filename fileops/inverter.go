package fileops

import (
	"context"
	"path/filepath"

	"github.com/filedesk/filecore/changebus"
	"github.com/filedesk/filecore/corefs"
)

// Inverter implements undo.Inverter for the mutation kinds fileops owns:
// Rename, Move, Copy, Link, Trash and Create. Each kind's forward and
// reverse actions run the same physical operation in one direction or the
// other, so a single Invert call serves both Manager.Undo and
// Manager.Redo; which direction to take is read off the filesystem itself
// (does the entry currently sit at the "before" or "after" location)
// rather than threaded through as a parameter, since the Manager always
// calls the same method regardless of which stack it popped from.
type Inverter struct {
	Ops *Ops
}

func (inv *Inverter) Invert(ctx context.Context, record corefs.UndoRecord) (corefs.UndoRecord, error) {
	ops := inv.Ops
	switch record.Kind {
	case corefs.OpRename:
		return invertRename(ctx, ops, record)
	case corefs.OpMove:
		return invertMove(ctx, ops, record)
	case corefs.OpCopy:
		return invertCopy(ctx, ops, record)
	case corefs.OpLink:
		return invertLink(ops, record)
	case corefs.OpTrash:
		return invertTrash(ops, record)
	case corefs.OpCreate:
		return invertCreate(ops, record)
	case corefs.OpDelete:
		return corefs.UndoRecord{}, corefs.New(corefs.KindUnsupportedFormat, "a permanent delete cannot be undone")
	default:
		return corefs.UndoRecord{}, corefs.New(corefs.KindUnsupportedFormat, "fileops.Inverter has no handler for this op kind")
	}
}

func invertRename(ctx context.Context, ops *Ops, record corefs.UndoRecord) (corefs.UndoRecord, error) {
	cur, other := record.ToURI, record.FromURI
	if !ops.Backend.Exists(cur) {
		cur, other = record.FromURI, record.ToURI
	}
	if err := ops.Backend.Rename(ctx, cur, other); err != nil {
		return corefs.UndoRecord{}, err
	}
	ops.Bus.Publish(changebus.Event{Kind: changebus.Renamed, From: cur, To: other})
	return corefs.UndoRecord{Kind: corefs.OpRename, FromURI: cur, ToURI: other}, nil
}

func invertMove(ctx context.Context, ops *Ops, record corefs.UndoRecord) (corefs.UndoRecord, error) {
	// Default assumption: the forward move already happened, so the
	// entries currently live under DestinationURI and this call undoes
	// them back to SourceURI. If they're not there, the stack direction
	// is actually redo (the entries are still/again at SourceURI), so the
	// roles swap, mirroring invertRename's cur/other dance.
	fromDir, toDir := record.DestinationURI, record.SourceURI
	if len(record.ChosenNames) > 0 && !ops.Backend.Exists(fromDir.Child(record.ChosenNames[0])) {
		fromDir, toDir = toDir, fromDir
	}
	if err := moveNamed(ctx, ops, fromDir, toDir, record.ChosenNames); err != nil {
		return corefs.UndoRecord{}, err
	}
	return corefs.UndoRecord{
		Kind:           corefs.OpMove,
		SourceURI:      fromDir,
		DestinationURI: toDir,
		ChosenNames:    record.ChosenNames,
	}, nil
}

// moveNamed relocates each of names from fromDir to toDir, preferring a
// same-filesystem rename and falling back to copy-then-remove, matching
// transfer's own Move fallback.
func moveNamed(ctx context.Context, ops *Ops, fromDir, toDir corefs.Location, names []string) error {
	for _, name := range names {
		src := fromDir.Child(name)
		dst := toDir.Child(name)
		if err := ops.Backend.Rename(ctx, src, dst); err == nil {
			ops.Bus.Publish(changebus.Event{Kind: changebus.Moved, From: src, To: dst})
			continue
		}
		info, err := ops.Backend.QueryInfo(ctx, src)
		if err != nil {
			return err
		}
		if info.IsDir {
			if err := copyDirTree(ctx, ops, src, dst); err != nil {
				return err
			}
		} else if err := copyFileWithRetry(ctx, ops, src, dst); err != nil {
			return err
		}
		if err := removeTree(src); err != nil {
			return err
		}
		ops.Bus.Publish(changebus.Event{Kind: changebus.Moved, From: src, To: dst})
	}
	return nil
}

// invertCopy toggles between removing the copies a Copy call produced
// (undo) and reproducing them from the still-intact sources (redo); Copy
// never touches its sources, so both directions are always available.
func invertCopy(ctx context.Context, ops *Ops, record corefs.UndoRecord) (corefs.UndoRecord, error) {
	if len(record.ChosenNames) == 0 {
		return record, nil
	}
	if ops.Backend.Exists(record.DestinationURI.Child(record.ChosenNames[0])) {
		for _, name := range record.ChosenNames {
			if err := removeTree(record.DestinationURI.Child(name)); err != nil {
				return corefs.UndoRecord{}, err
			}
			ops.Bus.Publish(changebus.Event{Kind: changebus.Deleted, From: record.DestinationURI.Child(name)})
		}
		return record, nil
	}
	for _, name := range record.ChosenNames {
		src := record.SourceURI.Child(name)
		dst := record.DestinationURI.Child(name)
		info, err := ops.Backend.QueryInfo(ctx, src)
		if err != nil {
			return corefs.UndoRecord{}, err
		}
		if info.IsDir {
			if err := copyDirTree(ctx, ops, src, dst); err != nil {
				return corefs.UndoRecord{}, err
			}
		} else if err := copyFileWithRetry(ctx, ops, src, dst); err != nil {
			return corefs.UndoRecord{}, err
		}
		ops.Bus.Publish(changebus.Event{Kind: changebus.Created, To: dst})
	}
	return record, nil
}

func invertLink(ops *Ops, record corefs.UndoRecord) (corefs.UndoRecord, error) {
	if ops.Backend.Exists(record.LinkURI) {
		if err := UndoLink(ops, record.LinkURI); err != nil {
			return corefs.UndoRecord{}, err
		}
		return record, nil
	}
	if err := RedoLink(ops, record.TargetURI, record.LinkURI); err != nil {
		return corefs.UndoRecord{}, err
	}
	return record, nil
}

func invertTrash(ops *Ops, record corefs.UndoRecord) (corefs.UndoRecord, error) {
	if ops.Backend.Exists(record.TrashedAsURI) {
		infoPath, err := trashInfoPathFor(record.DeletedURI, record.TrashedAsURI)
		if err != nil {
			return corefs.UndoRecord{}, err
		}
		if _, err := Restore(ops, TrashResult{TrashedPath: record.TrashedAsURI.Path, InfoPath: infoPath}); err != nil {
			return corefs.UndoRecord{}, err
		}
		return record, nil
	}
	result, err := Trash(ops, record.DeletedURI)
	if err != nil {
		return corefs.UndoRecord{}, err
	}
	return corefs.UndoRecord{
		Kind:         corefs.OpTrash,
		DeletedURI:   record.DeletedURI,
		TrashedAsURI: corefs.ParseLocation(result.TrashedPath),
	}, nil
}

// trashInfoPathFor reconstructs the .trashinfo sidecar path Trash wrote
// alongside trashedLoc, deriving the info directory from origLoc the same
// way trashDirsFor does rather than storing a second path on the record.
func trashInfoPathFor(origLoc, trashedLoc corefs.Location) (string, error) {
	_, infoDir, err := trashDirsFor(origLoc)
	if err != nil {
		return "", err
	}
	return filepath.Join(infoDir, filepath.Base(trashedLoc.Path)+".trashinfo"), nil
}

func invertCreate(ops *Ops, record corefs.UndoRecord) (corefs.UndoRecord, error) {
	if ops.Backend.Exists(record.CreatedURI) {
		if err := removeTree(record.CreatedURI); err != nil {
			return corefs.UndoRecord{}, err
		}
		ops.Bus.Publish(changebus.Event{Kind: changebus.Deleted, From: record.CreatedURI})
		return record, nil
	}
	var err error
	switch record.CreateKind {
	case corefs.CreateDir:
		err = ops.Backend.Mkdir(record.CreatedURI)
	case corefs.CreateEmptyFile:
		err = ops.Backend.CreateEmpty(record.CreatedURI)
	case corefs.CreateFromTemplate:
		err = ops.Backend.CreateFromTemplate(record.TemplateURI, record.CreatedURI)
	case corefs.CreateFromBytes:
		err = ops.Backend.CreateFromBytes(record.CreatedURI, record.LiteralBytes)
	default:
		err = corefs.New(corefs.KindUnsupportedFormat, "unknown create kind")
	}
	if err != nil {
		return corefs.UndoRecord{}, err
	}
	ops.Bus.Publish(changebus.Event{Kind: changebus.Created, To: record.CreatedURI})
	return record, nil
}
