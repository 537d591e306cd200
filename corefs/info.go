package corefs

import "time"

// Info is the attribute bundle query_info delivers: display name, content
// type, timestamps, size, ownership, thumbnail metadata, trash fields, and
// the owning filesystem's id, per spec.md §4.E.
type Info struct {
	DisplayName string
	ContentType string
	IsDir       bool
	Size        int64
	ModTime     time.Time
	AccessTime  time.Time
	ChangeTime  time.Time
	UID, GID    int
	Mode        uint32

	ThumbnailPath string // empty if no thumbnail has been generated yet
	ThumbnailFailed bool

	IsTrashed    bool
	TrashOrigURI Location

	FilesystemID string // identifies the device/volume, for inode dedup

	// Device/Inode identify the entry for loop detection in recursive
	// walks (compute-size, filesystem search). Zero on platforms/backends
	// that cannot report them.
	Device, Inode uint64
}

// Copy returns a deep copy of i, satisfying the AttributeCache's
// get_value(copy=true) contract. Info has no reference fields that need
// more than a shallow struct copy today (TrashOrigURI is a value type), so
// Copy is here mainly to give callers a name to call and a place to extend
// if a reference field is ever added.
func (i Info) Copy() Info {
	return i
}

// DirEntry is one child produced by enumerate-children: a location plus the
// Info gathered for it in the same enumeration pass (spec.md §4.E requires
// this single round trip).
type DirEntry struct {
	Location Location
	Info     Info
}
