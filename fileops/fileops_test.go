package fileops

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

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
	loop := task.GetLoop("fileops-test-" + t.Name())
	t.Cleanup(loop.Close)
	bus := changebus.New(reg, noopLoopContext{loop}, changebus.Signals{})
	return &Ops{Backend: backend, Bus: bus}
}

// newTestOpsWithUndo is newTestOps plus a live undo.Manager dispatching
// through this package's own Inverter, for tests exercising real undo/redo
// round trips rather than calling UndoX/RedoX functions directly.
func newTestOpsWithUndo(t *testing.T) *Ops {
	t.Helper()
	ops := newTestOps(t)
	ops.Undo = undo.New(&Inverter{Ops: ops})
	return ops
}

func loc(path string) corefs.Location { return corefs.ParseLocation(path) }

func TestCopyTransfersFileAndFiresCreated(t *testing.T) {
	ops := newTestOps(t)
	srcDir := t.TempDir()
	destDir := t.TempDir()

	srcFile := filepath.Join(srcDir, "a.txt")
	require.NoError(t, os.WriteFile(srcFile, []byte("hello"), 0o644))

	result, err := Copy(context.Background(), ops, []corefs.Location{loc(srcFile)}, loc(destDir), nil, nil)
	require.NoError(t, err)
	require.Len(t, result.DestLocs, 1)

	data, err := os.ReadFile(filepath.Join(destDir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	// source survives a Copy
	assert.FileExists(t, srcFile)
}

func TestMoveRemovesSource(t *testing.T) {
	ops := newTestOps(t)
	srcDir := t.TempDir()
	destDir := t.TempDir()

	srcFile := filepath.Join(srcDir, "a.txt")
	require.NoError(t, os.WriteFile(srcFile, []byte("hello"), 0o644))

	_, err := Move(context.Background(), ops, []corefs.Location{loc(srcFile)}, loc(destDir), nil, nil)
	require.NoError(t, err)

	assert.NoFileExists(t, srcFile)
	assert.FileExists(t, filepath.Join(destDir, "a.txt"))
}

func TestCopyConflictSkipAllSkipsRemainingCollisions(t *testing.T) {
	ops := newTestOps(t)
	srcDir := t.TempDir()
	destDir := t.TempDir()

	for _, name := range []string{"a.txt", "b.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(srcDir, name), []byte("new"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(destDir, name), []byte("old"), 0o644))
	}

	prompter := PrompterFunc(func(p *Prompt) Response { return ResponseSkipAll })
	result, err := Copy(context.Background(), ops,
		[]corefs.Location{loc(filepath.Join(srcDir, "a.txt")), loc(filepath.Join(srcDir, "b.txt"))},
		loc(destDir), prompter, nil)
	require.NoError(t, err)
	assert.Empty(t, result.DestLocs)

	data, err := os.ReadFile(filepath.Join(destDir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}

func TestLinkCreatesSymlinkAndUndoRemovesIt(t *testing.T) {
	ops := newTestOps(t)
	dir := t.TempDir()
	target := filepath.Join(dir, "target.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	result, err := Link(ops, loc(target), loc(dir))
	require.NoError(t, err)
	assert.Equal(t, "Link to target.txt", filepath.Base(result.Loc.Path))

	fi, err := os.Lstat(result.Loc.Path)
	require.NoError(t, err)
	assert.True(t, fi.Mode()&os.ModeSymlink != 0)

	require.NoError(t, UndoLink(ops, result.Loc))
	assert.NoFileExists(t, result.Loc.Path)

	require.NoError(t, RedoLink(ops, loc(target), result.Loc))
	assert.FileExists(t, result.Loc.Path)
}

func TestTrashAndRestoreRoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_DATA_HOME", "")

	ops := newTestOps(t)
	dir := t.TempDir()
	victim := filepath.Join(dir, "victim.txt")
	require.NoError(t, os.WriteFile(victim, []byte("gone soon"), 0o644))

	result, err := Trash(ops, loc(victim))
	require.NoError(t, err)
	assert.NoFileExists(t, victim)
	assert.FileExists(t, result.TrashedPath)
	assert.FileExists(t, result.InfoPath)

	restored, err := Restore(ops, result)
	require.NoError(t, err)
	assert.Equal(t, victim, restored.Path)
	assert.FileExists(t, victim)
	assert.NoFileExists(t, result.TrashedPath)
}

func TestDeleteFallsBackToPermanentWhenTrashUnavailable(t *testing.T) {
	// HOME pointed at a path that cannot be created under (a file, not a
	// dir) forces UserHomeDir-derived trash dirs to fail to create, so
	// Delete must fall back to Remove rather than erroring out.
	home := filepath.Join(t.TempDir(), "not-a-real-home")
	require.NoError(t, os.WriteFile(home, []byte("x"), 0o644))
	t.Setenv("HOME", home)
	t.Setenv("XDG_DATA_HOME", "")

	ops := newTestOps(t)
	dir := t.TempDir()
	victim := filepath.Join(dir, "victim.txt")
	require.NoError(t, os.WriteFile(victim, []byte("data"), 0o644))

	require.NoError(t, Delete(ops, loc(victim), false))
	assert.NoFileExists(t, victim)
}

func TestCreateModesProduceExpectedEntries(t *testing.T) {
	ops := newTestOps(t)
	dir := t.TempDir()

	dirLoc, err := Create(ops, CreateRequest{Mode: CreateEmptyDir, Dir: loc(dir), Name: "NewFolder"})
	require.NoError(t, err)
	fi, err := os.Stat(dirLoc.Path)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())

	fileLoc, err := Create(ops, CreateRequest{Mode: CreateEmptyFile, Dir: loc(dir), Name: "empty.txt"})
	require.NoError(t, err)
	fi, err = os.Stat(fileLoc.Path)
	require.NoError(t, err)
	assert.Equal(t, int64(0), fi.Size())

	bytesLoc, err := Create(ops, CreateRequest{Mode: CreateFromBytes, Dir: loc(dir), Name: "from-bytes.txt", Content: []byte("payload")})
	require.NoError(t, err)
	data, err := os.ReadFile(bytesLoc.Path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestCreateUniquifiesOnNameCollision(t *testing.T) {
	ops := newTestOps(t)
	dir := t.TempDir()

	first, err := Create(ops, CreateRequest{Mode: CreateEmptyFile, Dir: loc(dir), Name: "dup.txt"})
	require.NoError(t, err)
	second, err := Create(ops, CreateRequest{Mode: CreateEmptyFile, Dir: loc(dir), Name: "dup.txt"})
	require.NoError(t, err)

	assert.NotEqual(t, first.Path, second.Path)
	assert.Equal(t, "dup (2).txt", filepath.Base(second.Path))
}

func TestComputeDeepCountTalliesTreeAndSkipsLoops(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("12345"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("12"), 0o644))

	// A symlink back to the tree root: must be counted once as an entry
	// and never recursed into.
	require.NoError(t, os.Symlink(dir, filepath.Join(dir, "sub", "loop")))

	result, err := ComputeDeepCount(context.Background(), loc(dir))
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.DirectoryCount) // dir itself + sub
	assert.Equal(t, int64(3), result.FileCount)       // a.txt, b.txt, loop symlink
	assert.Equal(t, int64(7), result.TotalBytes)
	assert.Equal(t, int64(0), result.UnreadableCount)
}

func TestComputeDeepCountRespectsCancellation(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ComputeDeepCount(ctx, loc(dir))
	require.Error(t, err)
	assert.Equal(t, corefs.KindCancelled, corefs.KindOf(err))
}

func TestUniquifySplitsExtensionNotDotfilePrefix(t *testing.T) {
	backend := localfs.New()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".bashrc"), []byte("x"), 0o644))

	result := Uniquify(backend, loc(dir), ".bashrc")
	assert.Equal(t, ".bashrc (2)", filepath.Base(result.Path))
}

func TestUndoManagerReversesCopyThenRedoReproducesIt(t *testing.T) {
	ops := newTestOpsWithUndo(t)
	srcDir := t.TempDir()
	destDir := t.TempDir()
	srcFile := filepath.Join(srcDir, "a.txt")
	require.NoError(t, os.WriteFile(srcFile, []byte("hello"), 0o644))

	_, err := Copy(context.Background(), ops, []corefs.Location{loc(srcFile)}, loc(destDir), nil, nil)
	require.NoError(t, err)
	destFile := filepath.Join(destDir, "a.txt")
	require.FileExists(t, destFile)
	assert.True(t, ops.Undo.CanUndo())

	ok, err := ops.Undo.Undo(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoFileExists(t, destFile)
	assert.FileExists(t, srcFile) // Copy's source is never touched by its own undo

	ok, err = ops.Undo.Redo(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.FileExists(t, destFile)
}

func TestUndoManagerReversesMoveThenRedoReproducesIt(t *testing.T) {
	ops := newTestOpsWithUndo(t)
	srcDir := t.TempDir()
	destDir := t.TempDir()
	srcFile := filepath.Join(srcDir, "a.txt")
	require.NoError(t, os.WriteFile(srcFile, []byte("hello"), 0o644))

	_, err := Move(context.Background(), ops, []corefs.Location{loc(srcFile)}, loc(destDir), nil, nil)
	require.NoError(t, err)
	destFile := filepath.Join(destDir, "a.txt")
	require.FileExists(t, destFile)
	require.NoFileExists(t, srcFile)

	ok, err := ops.Undo.Undo(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.FileExists(t, srcFile)
	assert.NoFileExists(t, destFile)

	ok, err = ops.Undo.Redo(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.FileExists(t, destFile)
	assert.NoFileExists(t, srcFile)
}

func TestUndoManagerReversesLinkThenRedoRecreatesIt(t *testing.T) {
	ops := newTestOpsWithUndo(t)
	dir := t.TempDir()
	target := filepath.Join(dir, "target.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	result, err := Link(ops, loc(target), loc(dir))
	require.NoError(t, err)
	require.FileExists(t, result.Loc.Path)

	ok, err := ops.Undo.Undo(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoFileExists(t, result.Loc.Path)

	ok, err = ops.Undo.Redo(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	fi, err := os.Lstat(result.Loc.Path)
	require.NoError(t, err)
	assert.True(t, fi.Mode()&os.ModeSymlink != 0)
}

func TestUndoManagerReversesTrashThenRedoRetrashesIt(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_DATA_HOME", "")

	ops := newTestOpsWithUndo(t)
	dir := t.TempDir()
	victim := filepath.Join(dir, "victim.txt")
	require.NoError(t, os.WriteFile(victim, []byte("gone soon"), 0o644))

	_, err := Trash(ops, loc(victim))
	require.NoError(t, err)
	require.NoFileExists(t, victim)

	ok, err := ops.Undo.Undo(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.FileExists(t, victim)

	ok, err = ops.Undo.Redo(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoFileExists(t, victim)
}

func TestUndoManagerReversesCreateThenRedoRecreatesIt(t *testing.T) {
	ops := newTestOpsWithUndo(t)
	dir := t.TempDir()

	fileLoc, err := Create(ops, CreateRequest{Mode: CreateFromBytes, Dir: loc(dir), Name: "new.txt", Content: []byte("payload")})
	require.NoError(t, err)
	require.FileExists(t, fileLoc.Path)

	ok, err := ops.Undo.Undo(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoFileExists(t, fileLoc.Path)

	ok, err = ops.Undo.Redo(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	data, err := os.ReadFile(fileLoc.Path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestProgressSnapshotTracksFractionAndElapsed(t *testing.T) {
	p := NewProgressInfo(func() {})
	p.SetTotal(4)
	p.AddDone(1)
	time.Sleep(5 * time.Millisecond)
	snap := p.Snapshot()
	assert.InDelta(t, 0.25, snap.Fraction, 0.001)
	assert.Greater(t, snap.Elapsed, time.Duration(0))
}
