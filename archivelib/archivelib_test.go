package archivelib

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filedesk/filecore/changebus"
	"github.com/filedesk/filecore/corefs"
	"github.com/filedesk/filecore/localfs"
	"github.com/filedesk/filecore/node"
	"github.com/filedesk/filecore/task"
	"github.com/filedesk/filecore/undo"
)

type noopLoopContext struct{ loop *task.Loop }

func (c noopLoopContext) LoopFor(n *node.FileNode) *task.Loop { return c.loop }

func newTestOps(t *testing.T) *Ops {
	t.Helper()
	backend := localfs.New()
	reg := node.NewRegistry(backend)
	loop := task.GetLoop("archivelib-test-" + t.Name())
	t.Cleanup(loop.Close)
	bus := changebus.New(reg, noopLoopContext{loop}, changebus.Signals{})
	return &Ops{Backend: backend, Bus: bus}
}

func loc(path string) corefs.Location { return corefs.ParseLocation(path) }

func buildSampleTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("world"), 0o644))
	return dir
}

func TestZipRoundTripPreservesTreeContents(t *testing.T) {
	ops := newTestOps(t)
	src := buildSampleTree(t)
	archivePath := filepath.Join(t.TempDir(), "out.zip")

	var scanned []string
	err := Compress(context.Background(), ops, []corefs.Location{loc(src)}, loc(archivePath), FormatZip, "",
		Callbacks{Scanned: func(name string) { scanned = append(scanned, name) }})
	require.NoError(t, err)
	assert.NotEmpty(t, scanned)
	assert.FileExists(t, archivePath)

	destDir := t.TempDir()
	topLevel, err := Extract(context.Background(), ops, loc(archivePath), loc(destDir), "", Callbacks{})
	require.NoError(t, err)
	assert.Equal(t, []corefs.Location{loc(filepath.Join(destDir, filepath.Base(src)))}, topLevel)

	extractedBase := filepath.Base(src)
	data, err := os.ReadFile(filepath.Join(destDir, extractedBase, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	data, err = os.ReadFile(filepath.Join(destDir, extractedBase, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "world", string(data))
}

func TestEncryptedZipRequiresCorrectPassphrase(t *testing.T) {
	ops := newTestOps(t)
	src := buildSampleTree(t)
	archivePath := filepath.Join(t.TempDir(), "secret.zip")

	err := Compress(context.Background(), ops, []corefs.Location{loc(src)}, loc(archivePath), FormatZip, "hunter2", Callbacks{})
	require.NoError(t, err)

	destDir := t.TempDir()
	_, err = Extract(context.Background(), ops, loc(archivePath), loc(destDir), "wrongpass", Callbacks{})
	require.NoError(t, err) // extraction loop itself doesn't abort on a bad-passphrase entry

	// the file never got written because decryptEntry rejected the CRC check
	assert.NoFileExists(t, filepath.Join(destDir, filepath.Base(src), "a.txt"))

	destDir2 := t.TempDir()
	_, err = Extract(context.Background(), ops, loc(archivePath), loc(destDir2), "hunter2", Callbacks{})
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(destDir2, filepath.Base(src), "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestTarGzRoundTrip(t *testing.T) {
	ops := newTestOps(t)
	src := buildSampleTree(t)
	archivePath := filepath.Join(t.TempDir(), "out.tar.gz")

	require.NoError(t, Compress(context.Background(), ops, []corefs.Location{loc(src)}, loc(archivePath), FormatTarGz, "", Callbacks{}))

	destDir := t.TempDir()
	_, err := Extract(context.Background(), ops, loc(archivePath), loc(destDir), "", Callbacks{})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(destDir, filepath.Base(src), "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "world", string(data))
}

func TestDetectFormatFromExtension(t *testing.T) {
	f, ok := DetectFormat("archive.tar.gz")
	require.True(t, ok)
	assert.Equal(t, FormatTarGz, f)

	_, ok = DetectFormat("archive.rar")
	assert.False(t, ok)
}

func TestExtractDecideDestinationAppliesOncePerTopLevelEntry(t *testing.T) {
	ops := newTestOps(t)
	src := buildSampleTree(t)
	archivePath := filepath.Join(t.TempDir(), "out.zip")
	require.NoError(t, Compress(context.Background(), ops, []corefs.Location{loc(src)}, loc(archivePath), FormatZip, "", Callbacks{}))

	var decided []string
	destDir := t.TempDir()
	topLevel, err := Extract(context.Background(), ops, loc(archivePath), loc(destDir), "", Callbacks{
		DecideDestination: func(name string) (string, bool) {
			decided = append(decided, name)
			return "renamed", false
		},
	})
	require.NoError(t, err)

	// Consulted exactly once, for the archive's single top-level entry, not
	// once per member nested under it.
	assert.Equal(t, []string{filepath.Base(src)}, decided)
	assert.Equal(t, []corefs.Location{loc(filepath.Join(destDir, "renamed"))}, topLevel)

	// The rename made for the top-level entry carried through to every
	// nested member rather than only the top-level directory itself.
	data, err := os.ReadFile(filepath.Join(destDir, "renamed", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	data, err = os.ReadFile(filepath.Join(destDir, "renamed", "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "world", string(data))
}

func TestExtractDecideDestinationCanSkipTopLevelEntry(t *testing.T) {
	ops := newTestOps(t)
	src := buildSampleTree(t)
	archivePath := filepath.Join(t.TempDir(), "out.zip")
	require.NoError(t, Compress(context.Background(), ops, []corefs.Location{loc(src)}, loc(archivePath), FormatZip, "", Callbacks{}))

	destDir := t.TempDir()
	topLevel, err := Extract(context.Background(), ops, loc(archivePath), loc(destDir), "", Callbacks{
		DecideDestination: func(name string) (string, bool) { return name, true },
	})
	require.NoError(t, err)
	assert.Empty(t, topLevel)
	assert.NoFileExists(t, filepath.Join(destDir, filepath.Base(src), "a.txt"))
	assert.NoFileExists(t, filepath.Join(destDir, filepath.Base(src), "sub", "b.txt"))
}

func TestUndoManagerRemovesExtractedTree(t *testing.T) {
	ops := newTestOps(t)
	ops.Undo = undo.New(&Inverter{Ops: ops})

	src := buildSampleTree(t)
	archivePath := filepath.Join(t.TempDir(), "out.zip")
	require.NoError(t, Compress(context.Background(), ops, []corefs.Location{loc(src)}, loc(archivePath), FormatZip, "", Callbacks{}))
	assert.True(t, ops.Undo.CanUndo(), "Compress should have pushed an undo record")

	destDir := t.TempDir()
	_, err := Extract(context.Background(), ops, loc(archivePath), loc(destDir), "", Callbacks{})
	require.NoError(t, err)
	extractedDir := filepath.Join(destDir, filepath.Base(src))
	require.DirExists(t, extractedDir)

	ok, err := ops.Undo.Undo(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoDirExists(t, extractedDir)

	// The archive itself is still there: only the extracted copy was undone.
	assert.FileExists(t, archivePath)

	ok, err = ops.Undo.Undo(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoFileExists(t, archivePath)
}
