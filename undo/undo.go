// Package undo implements the UndoManager of spec.md §4.H: a process-wide
// doubly-ended stack of corefs.UndoRecord, where undo pops and inverts the
// top record and redo is symmetric.
package undo

import (
	"context"
	"sync"

	"github.com/filedesk/filecore/corefs"
)

// Inverter dispatches the mutation that inverts (on undo) or replays (on
// redo) one UndoRecord. Implemented by package fileops, kept as an
// interface here so undo never imports fileops — the same leaf-interface
// split used throughout this module (registry.Node, node.Backend).
type Inverter interface {
	// Invert performs the inverse of record (the undo direction) and
	// returns a record describing the inverse operation itself, which is
	// what gets pushed onto the redo stack.
	Invert(ctx context.Context, record corefs.UndoRecord) (corefs.UndoRecord, error)
}

// Manager is the process-wide undo/redo stack. The zero value is not
// usable; construct with New.
type Manager struct {
	inverter Inverter

	mu    sync.Mutex
	undo  []corefs.UndoRecord
	redo  []corefs.UndoRecord
	limit int
}

// DefaultLimit bounds how many records the stack retains, matching the
// file manager's own finite undo history rather than growing unbounded
// for a long session.
const DefaultLimit = 100

// New returns a Manager dispatching inverse operations through inverter.
func New(inverter Inverter) *Manager {
	return &Manager{inverter: inverter, limit: DefaultLimit}
}

// Push records a newly completed mutation and clears the redo stack, per
// spec.md §4.H ("pushes it onto the manager's undo stack; the redo stack
// is cleared").
func (m *Manager) Push(record corefs.UndoRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo = append(m.undo, record)
	if len(m.undo) > m.limit {
		m.undo = m.undo[len(m.undo)-m.limit:]
	}
	m.redo = nil
}

// CanUndo/CanRedo report whether a stack is non-empty, for UI enablement.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo) > 0
}

func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo) > 0
}

// Undo pops the top undo record, dispatches its inverse, and on success
// pushes the resulting record onto the redo stack (spec.md §4.H). Returns
// false with no error if the undo stack was empty.
func (m *Manager) Undo(ctx context.Context) (bool, error) {
	m.mu.Lock()
	if len(m.undo) == 0 {
		m.mu.Unlock()
		return false, nil
	}
	record := m.undo[len(m.undo)-1]
	m.undo = m.undo[:len(m.undo)-1]
	m.mu.Unlock()

	inverse, err := m.inverter.Invert(ctx, record)
	if err != nil {
		// Failed undo: put the record back so the user can retry.
		m.mu.Lock()
		m.undo = append(m.undo, record)
		m.mu.Unlock()
		return false, err
	}

	m.mu.Lock()
	m.redo = append(m.redo, inverse)
	m.mu.Unlock()
	return true, nil
}

// Redo is Undo's mirror: pop the top redo record, dispatch it, and on
// success push the result back onto the undo stack.
func (m *Manager) Redo(ctx context.Context) (bool, error) {
	m.mu.Lock()
	if len(m.redo) == 0 {
		m.mu.Unlock()
		return false, nil
	}
	record := m.redo[len(m.redo)-1]
	m.redo = m.redo[:len(m.redo)-1]
	m.mu.Unlock()

	inverse, err := m.inverter.Invert(ctx, record)
	if err != nil {
		m.mu.Lock()
		m.redo = append(m.redo, record)
		m.mu.Unlock()
		return false, err
	}

	m.mu.Lock()
	m.undo = append(m.undo, inverse)
	m.mu.Unlock()
	return true, nil
}
