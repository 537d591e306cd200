// Package archivelib implements spec.md §4.G items 6-7's Compress/Extract
// operations: streaming an archive out of a set of sources, or a
// directory tree out of an existing archive, through the same
// scanned/error/decide-destination/progress callback shape the
// original's archive operation drives its UI from.
package archivelib

import (
	"context"
	"io"

	"github.com/filedesk/filecore/corefs"
)

// Format identifies which container/compression pairing an archive uses.
type Format int

const (
	FormatZip Format = iota
	FormatTarGz
	FormatTarZstd
)

// Callbacks mirrors the four notification points spec.md §4.G items 6-7
// describe: one entry has been scanned and is about to be written/read,
// an entry failed without aborting the whole run, the destination path
// for an extracted entry is being decided (so a caller can rename on
// collision), and overall byte/entry progress.
//
// DecideDestination is consulted exactly once per top-level entry (the
// first path component of each archive member), never once per nested
// member: whatever name or skip decision it returns for "photos" is
// reused verbatim for every "photos/…" member that follows, so a rename
// made to avoid a collision at the destination root doesn't fragment a
// single extracted tree across two different output names.
type Callbacks struct {
	Scanned            func(name string)
	Error              func(name string, err error)
	DecideDestination  func(entryName string) (destName string, skip bool)
	Progress           func(done, total int64)
}

func (c Callbacks) scanned(name string) {
	if c.Scanned != nil {
		c.Scanned(name)
	}
}

func (c Callbacks) reportError(name string, err error) {
	if c.Error != nil {
		c.Error(name, err)
	}
}

func (c Callbacks) decideDestination(name string) (string, bool) {
	if c.DecideDestination != nil {
		return c.DecideDestination(name)
	}
	return name, false
}

func (c Callbacks) progress(done, total int64) {
	if c.Progress != nil {
		c.Progress(done, total)
	}
}

// SourceEntry is one file or directory to fold into an archive, already
// resolved to a path on disk plus the archive-relative name it should be
// stored under.
type SourceEntry struct {
	Loc        corefs.Location
	ArchiveName string
	Info       corefs.Info
}

// Writer is the narrow per-format capability Compress dispatches to.
// Only zip, tar.gz and tar.zst have writers; for any other Format,
// NewWriter returns a KindUnsupportedFormat error instead of a Writer.
type Writer interface {
	WriteEntry(ctx context.Context, name string, info corefs.Info, r io.Reader) error
	Close() error
}

// Reader is the narrow per-format capability Extract dispatches to.
type Reader interface {
	// Next returns io.EOF when the archive is exhausted.
	Next() (name string, info corefs.Info, r io.Reader, err error)
	Close() error
}

// NewWriter opens dest for writing in the given format. passphrase is only
// honored by FormatZip (traditional PKWARE encryption via
// internal/pkzipcrypto); other formats ignore it.
func NewWriter(format Format, w io.Writer, passphrase string) (Writer, error) {
	switch format {
	case FormatZip:
		return newZipWriter(w, passphrase), nil
	case FormatTarGz:
		return newTarGzWriter(w)
	case FormatTarZstd:
		return newTarZstdWriter(w)
	default:
		return nil, corefs.New(corefs.KindUnsupportedFormat, "no writer for this archive format; hand off to the host's archive-tool installer")
	}
}

// NewReader opens an archive for reading. Format detection by file
// extension is the caller's job (see DetectFormat); NewReader always wants
// to be told which format it's reading.
func NewReader(format Format, r io.Reader, passphrase string) (Reader, error) {
	switch format {
	case FormatZip:
		return newZipReader(r, passphrase)
	case FormatTarGz:
		return newTarGzReader(r)
	case FormatTarZstd:
		return newTarZstdReader(r)
	default:
		return nil, corefs.New(corefs.KindUnsupportedFormat, "no reader for this archive format; hand off to the host's archive-tool installer")
	}
}

// DetectFormat guesses a Format from an archive's file extension, for
// Extract callers that only have a Location to go on.
func DetectFormat(name string) (Format, bool) {
	switch {
	case hasSuffix(name, ".zip"):
		return FormatZip, true
	case hasSuffix(name, ".tar.gz") || hasSuffix(name, ".tgz"):
		return FormatTarGz, true
	case hasSuffix(name, ".tar.zst"):
		return FormatTarZstd, true
	default:
		return 0, false
	}
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}
