package fileops

import (
	"github.com/filedesk/filecore/changebus"
	"github.com/filedesk/filecore/corefs"
)

// LinkResult reports the location the new symlink was actually created at,
// after uniquification, for undo-record construction.
type LinkResult struct {
	Loc corefs.Location
}

// Link implements spec.md §4.G item 2: create a symlink to target inside
// destDir named "Link to <target basename>", uniquified if that name is
// already taken. Undo is a plain removal of the created link; redo
// recreates it at the same Loc, which is why the chosen Loc is returned
// rather than recomputed.
func Link(ops *Ops, target, destDir corefs.Location) (LinkResult, error) {
	name := LinkName(target)
	loc := Uniquify(ops.Backend, destDir, name)

	if err := ops.Backend.Symlink(target.Path, loc); err != nil {
		return LinkResult{}, err
	}

	ops.Bus.Publish(changebus.Event{Kind: changebus.Created, To: loc})
	if ops.Undo != nil {
		ops.Undo.Push(corefs.UndoRecord{Kind: corefs.OpLink, LinkURI: loc, TargetURI: target})
	}
	return LinkResult{Loc: loc}, nil
}

// UndoLink removes the symlink a Link call created.
func UndoLink(ops *Ops, loc corefs.Location) error {
	if err := ops.Backend.Remove(loc); err != nil {
		return err
	}
	ops.Bus.Publish(changebus.Event{Kind: changebus.Deleted, From: loc})
	return nil
}

// RedoLink recreates the symlink at the same location Link originally
// chose, pointing at the same target.
func RedoLink(ops *Ops, target, loc corefs.Location) error {
	if err := ops.Backend.Symlink(target.Path, loc); err != nil {
		return err
	}
	ops.Bus.Publish(changebus.Event{Kind: changebus.Created, To: loc})
	return nil
}
