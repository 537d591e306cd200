package search

import (
	"context"
	"strings"

	"github.com/filedesk/filecore/corefs"
	"github.com/filedesk/filecore/localfs"
)

// filesystemBatchSize matches spec.md §4.I's "emit in batches of 500
// hits, not one at a time" requirement for a live recursive walk.
const filesystemBatchSize = 500

// FilesystemProvider answers a query by walking the local tree under
// query.Root, matching each entry's name against query.MatchesName and its
// content-type against query.MimeTypes/DateRange. It is the provider used
// when no index exists yet for a location (spec.md §4.I item 3), grounded
// on localfs.Client's QueryInfo/EnumerateChildren pair rather than reaching
// past the backend into raw os calls, so it honors the same scheme check
// and error classification every other collaborator does.
type FilesystemProvider struct {
	Backend *localfs.Client
}

// NewFilesystemProvider returns a provider over backend.
func NewFilesystemProvider(backend *localfs.Client) *FilesystemProvider {
	return &FilesystemProvider{Backend: backend}
}

// Run implements Provider. A query with HasRoot false matches nothing:
// the filesystem provider only ever searches a scoped subtree, per
// spec.md §4.I's requirement that a root-less query be served by the
// indexed or recents providers instead.
func (p *FilesystemProvider) Run(ctx context.Context, query corefs.Query, emit func([]corefs.SearchHit), onDone func(error)) {
	if !query.HasRoot {
		onDone(nil)
		return
	}

	seen := make(map[inodePair]struct{})
	var batch []corefs.SearchHit
	var walkErr error

	var walk func(loc corefs.Location) bool
	walk = func(loc corefs.Location) bool {
		select {
		case <-ctx.Done():
			walkErr = ctx.Err()
			return false
		default:
		}

		info, err := p.Backend.QueryInfo(ctx, loc)
		if err != nil {
			// unreadable entries (permission denied, vanished mid-walk) are
			// skipped rather than aborting the whole subtree
			return true
		}

		if info.Inode != 0 {
			key := inodePair{fsID: info.FilesystemID, inode: info.Inode}
			if _, dup := seen[key]; dup {
				return true
			}
			seen[key] = struct{}{}
		}

		if matchesQuery(query, loc, info) {
			batch = append(batch, corefs.SearchHit{
				URI:      loc,
				Rank:     0,
				MTime:    info.ModTime,
				ATime:    info.AccessTime,
				CTime:    info.ChangeTime,
				Provider: "filesystem",
			})
			if len(batch) >= filesystemBatchSize {
				emit(batch)
				batch = nil
			}
		}

		if !info.IsDir {
			return true
		}
		if !query.Recursive && loc != query.Root {
			return true
		}
		if !query.ShowHidden && isHidden(loc.Base()) && loc != query.Root {
			return true
		}

		children, err := p.Backend.EnumerateChildren(ctx, loc)
		if err != nil {
			return true
		}
		for _, child := range children {
			if !walk(child.Location) {
				return false
			}
		}
		return true
	}

	walk(query.Root)

	if len(batch) > 0 {
		emit(batch)
	}
	onDone(walkErr)
}

type inodePair struct {
	fsID  string
	inode uint64
}

func matchesQuery(query corefs.Query, loc corefs.Location, info corefs.Info) bool {
	if !query.MatchesName(info.DisplayName) {
		return false
	}
	if len(query.MimeTypes) > 0 && !query.MimeTypes[info.ContentType] {
		return false
	}
	if query.HasDateRange {
		t := info.ModTime
		switch query.TimeAttr {
		case corefs.TimeAccess:
			t = info.AccessTime
		case corefs.TimeCreation:
			t = info.ChangeTime
		}
		if !query.DateRange.Contains(t) {
			return false
		}
	}
	return true
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
