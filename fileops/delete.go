package fileops

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/filedesk/filecore/changebus"
	"github.com/filedesk/filecore/corefs"
	"github.com/filedesk/filecore/corelog"
)

// TrashResult records where an entry landed in the trash, so an undo
// record can restore it from exactly that path rather than re-deriving a
// (potentially now-stale) name.
type TrashResult struct {
	TrashedPath string
	InfoPath    string
}

// Delete implements spec.md §4.G item 3: trash is attempted first, and
// only on failure (no XDG trash directory reachable, e.g. a different
// filesystem than $HOME with no per-device Trash, or an explicit
// permanent-delete request) does the operation fall back to Remove. There
// is no pack library for the freedesktop trash convention, so this is
// implemented directly against the spec's files/+info/ layout (documented
// in DESIGN.md as a deliberate stdlib choice).
func Delete(ops *Ops, loc corefs.Location, permanent bool) error {
	defer beginInhibit(ops, "Deleting files").Release()

	if !permanent {
		if _, err := Trash(ops, loc); err == nil {
			return nil
		} else {
			corelog.Debugf(nil, "fileops: trash failed for %s, falling back to permanent delete: %v", loc, err)
		}
	}
	if err := removeTree(loc); err != nil {
		return err
	}
	ops.Bus.Publish(changebus.Event{Kind: changebus.Deleted, From: loc})
	// A permanent delete has nothing left to invert: there is no undo push
	// here, unlike the Trash path below.
	return nil
}

// Trash moves loc into the nearest freedesktop trash directory and writes
// its .trashinfo sidecar recording the original path and deletion time, so
// a later restore can put it back exactly where it came from.
func Trash(ops *Ops, loc corefs.Location) (TrashResult, error) {
	defer beginInhibit(ops, "Trashing files").Release()

	filesDir, infoDir, err := trashDirsFor(loc)
	if err != nil {
		return TrashResult{}, corefs.Wrap(corefs.KindBackendUnavailable, err)
	}
	if err := os.MkdirAll(filesDir, 0o700); err != nil {
		return TrashResult{}, corefs.Wrap(corefs.KindIO, err)
	}
	if err := os.MkdirAll(infoDir, 0o700); err != nil {
		return TrashResult{}, corefs.Wrap(corefs.KindIO, err)
	}

	base := filepath.Base(loc.Path)
	trashedPath := filepath.Join(filesDir, base)
	infoPath := filepath.Join(infoDir, base+".trashinfo")
	for n := 2; fileExists(trashedPath) || fileExists(infoPath); n++ {
		name := fmt.Sprintf("%s_%d", base, n)
		trashedPath = filepath.Join(filesDir, name)
		infoPath = filepath.Join(infoDir, name+".trashinfo")
	}

	if err := os.Rename(loc.Path, trashedPath); err != nil {
		return TrashResult{}, corefs.Wrap(corefs.KindIO, err)
	}

	content := trashInfoContents(loc.Path, time.Now())
	if err := os.WriteFile(infoPath, []byte(content), 0o600); err != nil {
		// Best effort: the file is already moved, a missing sidecar just
		// means restore-by-metadata won't find it, not that trashing failed.
		corelog.Warnf(nil, "fileops: trashed %s but failed to write sidecar: %v", loc, err)
	}

	ops.Bus.Publish(changebus.Event{Kind: changebus.Deleted, From: loc})
	if ops.Undo != nil {
		ops.Undo.Push(corefs.UndoRecord{
			Kind:         corefs.OpTrash,
			DeletedURI:   loc,
			TrashedAsURI: corefs.ParseLocation(trashedPath),
		})
	}
	return TrashResult{TrashedPath: trashedPath, InfoPath: infoPath}, nil
}

// Restore moves a trashed entry back to its original location, reading
// the path back out of its .trashinfo sidecar, and removes the sidecar.
func Restore(ops *Ops, result TrashResult) (corefs.Location, error) {
	origPath, err := readTrashInfoPath(result.InfoPath)
	if err != nil {
		return corefs.Location{}, corefs.Wrap(corefs.KindIO, err)
	}
	if err := os.Rename(result.TrashedPath, origPath); err != nil {
		return corefs.Location{}, corefs.Wrap(corefs.KindIO, err)
	}
	_ = os.Remove(result.InfoPath)

	loc := corefs.ParseLocation(origPath)
	ops.Bus.Publish(changebus.Event{Kind: changebus.Created, To: loc})
	return loc, nil
}

// trashDirsFor picks $XDG_DATA_HOME/Trash/{files,info} for entries on the
// home filesystem. Per-device $topdir/.Trash-$uid trash directories (for
// entries on other mounted filesystems) are not implemented; Trash returns
// an error for those and Delete falls back to permanent removal, which is
// the conservative choice when the faster cross-device trash path isn't
// available.
func trashDirsFor(loc corefs.Location) (filesDir, infoDir string, err error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", err
	}
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = filepath.Join(home, ".local", "share")
	}
	base := filepath.Join(dataHome, "Trash")
	return filepath.Join(base, "files"), filepath.Join(base, "info"), nil
}

func trashInfoContents(origPath string, deletedAt time.Time) string {
	escaped := (&url.URL{Path: origPath}).EscapedPath()
	return "[Trash Info]\n" +
		"Path=" + escaped + "\n" +
		"DeletionDate=" + deletedAt.Format("2006-01-02T15:04:05") + "\n"
}

func readTrashInfoPath(infoPath string) (string, error) {
	data, err := os.ReadFile(infoPath)
	if err != nil {
		return "", err
	}
	const prefix = "Path="
	lines := splitLines(string(data))
	for _, line := range lines {
		if len(line) > len(prefix) && line[:len(prefix)] == prefix {
			return url.PathUnescape(line[len(prefix):])
		}
	}
	return "", corefs.New(corefs.KindIO, "trashinfo has no Path= line")
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func fileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
