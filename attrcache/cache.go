package attrcache

import (
	"sync"
	"sync/atomic"

	"github.com/filedesk/filecore/corelog"
)

// DestroyFunc runs when a slot's value is overwritten or dropped.
type DestroyFunc func(value interface{})

// CopyFunc runs when a caller asks for an owned copy of a slot's value.
type CopyFunc func(value interface{}) interface{}

// SlotID is an opaque, densely-allocated handle returned by InstallSlot.
// Slot ids may be used as array indices (spec.md §4.D).
type SlotID int

type slot struct {
	state atomic.Int32 // State, read lock-free

	mu       sync.Mutex // guards value/hasValue and all state transitions
	value    interface{}
	hasValue bool

	destroy DestroyFunc
	copyFn  CopyFunc
}

// Cache is the per-FileNode AttributeCache: a densely-indexed set of
// independently-locked slots. The zero value is not usable; construct with
// New.
type Cache struct {
	// mu guards only the slots slice itself. InstallSlot is the sole
	// writer and spec.md requires it be called only during node
	// construction, so this lock sees no contention in steady state.
	mu    sync.Mutex
	slots []*slot
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{}
}

// InstallSlot allocates a fresh slot starting in state Invalid. Precondition
// (spec.md §4.D): called only during node construction, never concurrently
// with reads of an already-allocated slot on the same Cache.
func (c *Cache) InstallSlot(destroy DestroyFunc, copyFn CopyFunc) SlotID {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &slot{destroy: destroy, copyFn: copyFn}
	c.slots = append(c.slots, s)
	return SlotID(len(c.slots) - 1)
}

func (c *Cache) slot(id SlotID) *slot {
	c.mu.Lock()
	s := c.slots[id]
	c.mu.Unlock()
	return s
}

// State returns the slot's current state via a lock-free atomic read.
func (c *Cache) State(id SlotID) State {
	return State(c.slot(id).state.Load())
}

// SetPending transitions Invalid -> Pending. Any other starting state is a
// no-op; transitioning directly from Valid is logged as a programmer error
// per spec.md §3.
func (c *Cache) SetPending(id SlotID) {
	s := c.slot(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	switch State(s.state.Load()) {
	case Invalid:
		s.state.Store(int32(Pending))
	case Valid:
		corelog.Warnf(nil, "attrcache: set_pending on a Valid slot treated as no-op")
	case Pending:
		// at-most-one-pending-per-slot: no-op, not logged (this is the
		// expected steady-state race between concurrent readers).
	}
}

// SetValue stores v and transitions Pending -> Valid. If the slot is not
// currently Pending (it was invalidated, or already has a value), v is
// dropped silently — spec.md's "set on non-pending discards" rule, which
// lets a late task completion lose a race against invalidation without a
// generation counter.
func (c *Cache) SetValue(id SlotID, v interface{}) {
	s := c.slot(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if State(s.state.Load()) != Pending {
		if s.destroy != nil {
			s.destroy(v)
		}
		return
	}
	if s.hasValue && s.destroy != nil {
		s.destroy(s.value)
	}
	s.value = v
	s.hasValue = true
	s.state.Store(int32(Valid))
}

// GetValue returns the slot's value and whether one is present. With
// copy=true the returned value has passed through the slot's CopyFunc (or is
// returned as-is if no CopyFunc was installed); with copy=false the caller
// receives the stored value directly, valid only until the next mutation of
// the slot.
func (c *Cache) GetValue(id SlotID, copy bool) (interface{}, bool) {
	s := c.slot(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasValue {
		return nil, false
	}
	if copy && s.copyFn != nil {
		return s.copyFn(s.value), true
	}
	return s.value, true
}

// Invalidate transitions the slot to Invalid. If destroyNow is set and a
// value is present, DestroyFunc runs immediately and the value is dropped;
// otherwise the stale value is retained and may still be served by
// GetValue while a fresh update is pending.
func (c *Cache) Invalidate(id SlotID, destroyNow bool) {
	s := c.slot(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Store(int32(Invalid))
	if destroyNow && s.hasValue {
		if s.destroy != nil {
			s.destroy(s.value)
		}
		s.value = nil
		s.hasValue = false
	}
}

// InvalidateAll invalidates every slot without destroying stale values, used
// on rename (spec.md §4.C step 6 only invalidates Info directly, but a
// node's renamed handler may choose to invalidate everything cheaply).
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	slots := append([]*slot(nil), c.slots...)
	c.mu.Unlock()
	for _, s := range slots {
		s.mu.Lock()
		s.state.Store(int32(Invalid))
		s.mu.Unlock()
	}
}
