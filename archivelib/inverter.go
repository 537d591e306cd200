package archivelib

import (
	"context"
	"os"

	"github.com/filedesk/filecore/changebus"
	"github.com/filedesk/filecore/corefs"
)

// Inverter implements undo.Inverter for the two op kinds archivelib owns:
// Compress and Extract. corefs.UndoRecord only carries each kind's output
// (the archive it wrote, the top-level entries it created), not its
// inputs, so both kinds invert in one direction only: undo removes what
// the run produced. A second Invert call on the same record (the "redo"
// a Manager.Redo would attempt) finds nothing left to remove and is a
// no-op rather than an error, since there is no way back to re-derive the
// original sources from the record alone.
type Inverter struct {
	Ops *Ops
}

func (inv *Inverter) Invert(ctx context.Context, record corefs.UndoRecord) (corefs.UndoRecord, error) {
	switch record.Kind {
	case corefs.OpCompress:
		return invertCompress(inv.Ops, record)
	case corefs.OpExtract:
		return invertExtract(inv.Ops, record)
	default:
		return corefs.UndoRecord{}, corefs.New(corefs.KindUnsupportedFormat, "archivelib.Inverter has no handler for this op kind")
	}
}

func invertCompress(ops *Ops, record corefs.UndoRecord) (corefs.UndoRecord, error) {
	if !ops.Backend.Exists(record.ArchiveURI) {
		return record, nil
	}
	if err := os.Remove(record.ArchiveURI.Path); err != nil {
		return corefs.UndoRecord{}, corefs.Wrap(corefs.KindIO, err)
	}
	ops.Bus.Publish(changebus.Event{Kind: changebus.Deleted, From: record.ArchiveURI})
	return record, nil
}

func invertExtract(ops *Ops, record corefs.UndoRecord) (corefs.UndoRecord, error) {
	for _, loc := range record.TopLevelCreated {
		if !ops.Backend.Exists(loc) {
			continue
		}
		if err := os.RemoveAll(loc.Path); err != nil {
			return corefs.UndoRecord{}, corefs.Wrap(corefs.KindIO, err)
		}
		ops.Bus.Publish(changebus.Event{Kind: changebus.Deleted, From: loc})
	}
	return record, nil
}
