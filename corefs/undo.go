package corefs

// OpKind identifies which mutation an UndoRecord inverts.
type OpKind int

// The mutation kinds the UndoManager knows how to invert.
const (
	OpRename OpKind = iota
	OpMove
	OpCopy
	OpLink
	OpDelete
	OpTrash
	OpCreate
	OpCompress
	OpExtract
)

// CreateKind distinguishes the payload of an OpCreate record.
type CreateKind int

// The four ways FileOperations.Create can populate a new entry.
const (
	CreateDir CreateKind = iota
	CreateEmptyFile
	CreateFromTemplate
	CreateFromBytes
)

// UndoRecord carries enough information to exactly invert one completed
// mutation. Only the fields relevant to Kind are populated; the others are
// zero. See spec.md §3 for the field-per-kind contract this mirrors.
type UndoRecord struct {
	Kind OpKind

	// OpRename
	FromURI, ToURI Location

	// OpMove / OpCopy
	SourceURI, DestinationURI Location
	ChosenNames               []string // destination basenames actually used

	// OpLink
	LinkURI   Location // the link itself, for undo-by-removal
	TargetURI Location

	// OpDelete / OpTrash
	DeletedURI   Location
	TrashedAsURI Location // where Trash moved it, for undo-by-restore

	// OpCreate
	CreatedURI   Location
	CreateKind   CreateKind
	TemplateURI  Location
	LiteralBytes []byte

	// OpCompress
	ArchiveURI Location

	// OpExtract
	TopLevelCreated []Location
}
