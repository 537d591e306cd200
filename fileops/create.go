package fileops

import (
	"github.com/filedesk/filecore/changebus"
	"github.com/filedesk/filecore/corefs"
)

// CreateMode selects which of the four ways spec.md §4.G item 4 lists for
// populating a brand new entry.
type CreateMode int

const (
	CreateEmptyDir CreateMode = iota
	CreateEmptyFile
	CreateFromTemplate
	CreateFromBytes
)

// CreateRequest describes one Create call. Template is only read when Mode
// is CreateFromTemplate; Content is only read when Mode is
// CreateFromBytes.
type CreateRequest struct {
	Mode     CreateMode
	Dir      corefs.Location
	Name     string
	Template corefs.Location
	Content  []byte
}

// Create makes a new entry of the requested kind inside req.Dir, uniquifying
// req.Name first so repeated create calls for the same default name (e.g.
// repeated "New Folder") get distinct names.
func Create(ops *Ops, req CreateRequest) (corefs.Location, error) {
	defer beginInhibit(ops, "Creating a new item").Release()

	loc := Uniquify(ops.Backend, req.Dir, req.Name)

	var err error
	switch req.Mode {
	case CreateEmptyDir:
		err = ops.Backend.Mkdir(loc)
	case CreateEmptyFile:
		err = ops.Backend.CreateEmpty(loc)
	case CreateFromTemplate:
		err = ops.Backend.CreateFromTemplate(req.Template, loc)
	case CreateFromBytes:
		err = ops.Backend.CreateFromBytes(loc, req.Content)
	default:
		err = corefs.New(corefs.KindUnsupportedFormat, "unknown create mode")
	}
	if err != nil {
		return corefs.Location{}, err
	}

	ops.Bus.Publish(changebus.Event{Kind: changebus.Created, To: loc})
	if ops.Undo != nil {
		ops.Undo.Push(createUndoRecord(req, loc))
	}
	return loc, nil
}

func createUndoRecord(req CreateRequest, loc corefs.Location) corefs.UndoRecord {
	record := corefs.UndoRecord{Kind: corefs.OpCreate, CreatedURI: loc}
	switch req.Mode {
	case CreateEmptyDir:
		record.CreateKind = corefs.CreateDir
	case CreateEmptyFile:
		record.CreateKind = corefs.CreateEmptyFile
	case CreateFromTemplate:
		record.CreateKind = corefs.CreateFromTemplate
		record.TemplateURI = req.Template
	case CreateFromBytes:
		record.CreateKind = corefs.CreateFromBytes
		record.LiteralBytes = req.Content
	}
	return record
}
