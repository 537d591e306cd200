package undo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filedesk/filecore/corefs"
)

type fakeInverter struct {
	calls []corefs.UndoRecord
	err   error
}

func (f *fakeInverter) Invert(ctx context.Context, record corefs.UndoRecord) (corefs.UndoRecord, error) {
	f.calls = append(f.calls, record)
	if f.err != nil {
		return corefs.UndoRecord{}, f.err
	}
	// A trivial inverter: invert a rename by swapping from/to.
	return corefs.UndoRecord{Kind: corefs.OpRename, FromURI: record.ToURI, ToURI: record.FromURI}, nil
}

func TestPushClearsRedoStack(t *testing.T) {
	inv := &fakeInverter{}
	m := New(inv)

	rec := corefs.UndoRecord{Kind: corefs.OpRename, FromURI: corefs.ParseLocation("/a"), ToURI: corefs.ParseLocation("/b")}
	m.Push(rec)
	ok, err := m.Undo(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, m.CanRedo())

	m.Push(corefs.UndoRecord{Kind: corefs.OpRename})
	assert.False(t, m.CanRedo(), "pushing a new record must clear the redo stack")
}

// property 9 (round trip): undo then redo restores the undone record's
// effect.
func TestUndoRedoRoundTrip(t *testing.T) {
	inv := &fakeInverter{}
	m := New(inv)

	rec := corefs.UndoRecord{Kind: corefs.OpRename, FromURI: corefs.ParseLocation("/a"), ToURI: corefs.ParseLocation("/b")}
	m.Push(rec)

	ok, err := m.Undo(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, inv.calls, 1)
	assert.Equal(t, rec, inv.calls[0])

	ok, err = m.Redo(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, inv.calls, 2)
	// The redo call dispatches the inverse record Undo pushed onto the
	// redo stack, which itself inverts back to something equivalent to
	// the original rename direction.
	assert.Equal(t, corefs.OpRename, inv.calls[1].Kind)
	assert.Equal(t, rec.ToURI, inv.calls[1].FromURI)
	assert.Equal(t, rec.FromURI, inv.calls[1].ToURI)
}

func TestUndoOnEmptyStackIsNoop(t *testing.T) {
	m := New(&fakeInverter{})
	ok, err := m.Undo(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFailedUndoRestoresStack(t *testing.T) {
	inv := &fakeInverter{err: assert.AnError}
	m := New(inv)
	m.Push(corefs.UndoRecord{Kind: corefs.OpRename})

	ok, err := m.Undo(context.Background())
	assert.Error(t, err)
	assert.False(t, ok)
	assert.True(t, m.CanUndo(), "a failed undo must not lose the record")
}
