package archivelib

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/filedesk/filecore/changebus"
	"github.com/filedesk/filecore/corefs"
	"github.com/filedesk/filecore/corelog"
	"github.com/filedesk/filecore/fileops"
	"github.com/filedesk/filecore/localfs"
	"github.com/filedesk/filecore/undo"
)

// Ops bundles the filesystem and eventing collaborators Compress/Extract
// need, the same small-bundle shape fileops.Ops uses for its own
// mutations. Undo and Inhibitor are both optional, mirroring fileops.Ops.
type Ops struct {
	Backend   *localfs.Client
	Bus       *changebus.Bus
	Undo      *undo.Manager
	Inhibitor fileops.PowerInhibitor
}

// beginInhibit mirrors fileops' own unexported helper of the same shape:
// take out a power-inhibitor lock for the duration of a long archive run,
// if ops carries one, and never fail the operation over a lock that
// couldn't be acquired.
func beginInhibit(ops *Ops, why string) *fileops.Handle {
	if ops.Inhibitor == nil {
		return nil
	}
	h, err := ops.Inhibitor.Inhibit("filecore", why)
	if err != nil {
		corelog.Debugf(nil, "archivelib: inhibit failed, proceeding without it: %v", err)
		return nil
	}
	return h
}

// Compress walks sources (files and/or directories) and writes them into a
// single archive at dest in the given format. Scan and per-entry errors are
// reported through cb and do not abort the run; only a failure to open the
// destination file, a format with no writer, or a failure to close the
// writer is fatal, matching spec.md §4.G
// item 6's "one bad entry doesn't sink the whole archive" callback design.
func Compress(ctx context.Context, ops *Ops, sources []corefs.Location, dest corefs.Location, format Format, passphrase string, cb Callbacks) error {
	defer beginInhibit(ops, "Creating an archive").Release()

	entries := make([]SourceEntry, 0, len(sources))
	for _, src := range sources {
		collectEntries(ctx, ops, src, "", &entries, cb)
	}

	out, err := os.Create(dest.Path)
	if err != nil {
		return corefs.Wrap(corefs.KindIO, err)
	}
	defer out.Close()

	writer, err := NewWriter(format, out, passphrase)
	if err != nil {
		return err
	}

	var done int64
	total := int64(len(entries))
	for _, e := range entries {
		cb.scanned(e.ArchiveName)

		if e.Info.IsDir {
			if err := writer.WriteEntry(ctx, e.ArchiveName, e.Info, nil); err != nil {
				cb.reportError(e.ArchiveName, err)
			}
			done++
			cb.progress(done, total)
			continue
		}

		if err := writeFileEntry(ctx, writer, e); err != nil {
			cb.reportError(e.ArchiveName, err)
		}
		done++
		cb.progress(done, total)
	}

	if err := writer.Close(); err != nil {
		return err
	}

	ops.Bus.Publish(changebus.Event{Kind: changebus.Created, To: dest})
	if ops.Undo != nil {
		ops.Undo.Push(corefs.UndoRecord{Kind: corefs.OpCompress, ArchiveURI: dest})
	}
	return nil
}

func writeFileEntry(ctx context.Context, writer Writer, e SourceEntry) error {
	f, err := os.Open(e.Loc.Path)
	if err != nil {
		return corefs.Wrap(corefs.KindIO, err)
	}
	defer f.Close()
	return writer.WriteEntry(ctx, e.ArchiveName, e.Info, f)
}

// collectEntries recursively enumerates src, assigning each entry an
// archive-relative name rooted at prefix, and appends an unreadable entry
// to cb rather than aborting the whole scan if a child can't be statted.
func collectEntries(ctx context.Context, ops *Ops, src corefs.Location, prefix string, out *[]SourceEntry, cb Callbacks) {
	info, err := ops.Backend.QueryInfo(ctx, src)
	if err != nil {
		cb.reportError(src.String(), err)
		return
	}

	name := src.Base()
	archiveName := name
	if prefix != "" {
		archiveName = prefix + "/" + name
	}

	*out = append(*out, SourceEntry{Loc: src, ArchiveName: archiveName, Info: info})
	if !info.IsDir {
		return
	}

	children, err := ops.Backend.EnumerateChildren(ctx, src)
	if err != nil {
		cb.reportError(src.String(), err)
		return
	}
	for _, child := range children {
		collectEntries(ctx, ops, child.Location, archiveName, out, cb)
	}
}

// topLevelDecision records DecideDestination's one-time verdict for a
// top-level entry name, reused for every member nested under it.
type topLevelDecision struct {
	destName string
	skip     bool
}

// splitTopLevel breaks an archive member name into its first path
// component and whatever remains under it ("" for a bare top-level
// member).
func splitTopLevel(name string) (top, rest string) {
	name = strings.TrimPrefix(name, "/")
	if i := strings.IndexByte(name, '/'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return name, ""
}

// Extract unpacks archive into destDir and returns the distinct top-level
// entries it created there (spec.md §4.G item 7's "output list of
// top-level created entries", the set an undo record needs to remove
// everything the extraction added). Format is detected from archive's
// extension; pass a nonempty passphrase for encrypted zips.
// DecideDestination is invoked exactly once per top-level entry (see
// Callbacks); the chosen name or skip verdict is reused for every entry
// nested beneath it.
func Extract(ctx context.Context, ops *Ops, archive corefs.Location, destDir corefs.Location, passphrase string, cb Callbacks) ([]corefs.Location, error) {
	defer beginInhibit(ops, "Extracting an archive").Release()

	format, ok := DetectFormat(archive.Base())
	if !ok {
		return nil, corefs.New(corefs.KindUnsupportedFormat, "unrecognized archive extension: "+archive.Base())
	}

	in, err := os.Open(archive.Path)
	if err != nil {
		return nil, corefs.Wrap(corefs.KindIO, err)
	}
	defer in.Close()

	reader, err := NewReader(format, in, passphrase)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	decisions := make(map[string]topLevelDecision)
	var topLevel []corefs.Location
	var done int64
	for {
		select {
		case <-ctx.Done():
			return topLevel, corefs.Wrap(corefs.KindCancelled, ctx.Err())
		default:
		}

		name, info, r, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if name == "" {
				return topLevel, err
			}
			// the reader has already moved past this entry: report it and
			// go on with the rest of the archive
			cb.reportError(name, err)
			continue
		}

		cb.scanned(name)

		top, rest := splitTopLevel(name)
		decision, seen := decisions[top]
		if !seen {
			destTop, skip := cb.decideDestination(top)
			decision = topLevelDecision{destName: destTop, skip: skip}
			decisions[top] = decision
			if !skip {
				topLevel = append(topLevel, destDir.Child(destTop))
			}
		}
		if decision.skip {
			continue
		}

		destName := decision.destName
		if rest != "" {
			destName = decision.destName + "/" + rest
		}

		if err := extractOne(destDir, destName, info, r); err != nil {
			cb.reportError(name, err)
		}
		done++
		cb.progress(done, 0)
	}

	ops.Bus.Publish(changebus.Event{Kind: changebus.Created, To: destDir})
	if ops.Undo != nil && len(topLevel) > 0 {
		ops.Undo.Push(corefs.UndoRecord{Kind: corefs.OpExtract, TopLevelCreated: topLevel})
	}
	return topLevel, nil
}

func extractOne(destDir corefs.Location, destName string, info corefs.Info, r io.Reader) error {
	destPath := filepath.Join(destDir.Path, filepath.FromSlash(destName))

	if info.IsDir {
		return corefs.Wrap(corefs.KindIO, os.MkdirAll(destPath, 0o755))
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return corefs.Wrap(corefs.KindIO, err)
	}
	out, err := os.Create(destPath)
	if err != nil {
		return corefs.Wrap(corefs.KindIO, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		return corefs.Wrap(corefs.KindIO, err)
	}
	return nil
}
