// Package fileops implements the long-running file mutations of spec.md
// §4.G: copy/move/link/delete/trash/create and deep-count, sharing
// ProgressInfo, Prompt and power-inhibition scaffolding. Rename-many lives
// in package nodetasks and compress/extract in package archivelib.
package fileops

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// ProgressInfo is the shared progress scaffolding every long-running
// mutation reports through: a status string, a details string, a
// fractional progress value, elapsed/remaining time counters, and a
// cancellation handle shared with the underlying Task (spec.md §4.G).
type ProgressInfo struct {
	cancel context.CancelFunc
	start  time.Time

	mu       sync.RWMutex
	status   string
	details  string
	fraction float64

	done       int64
	total      int64
	onProgress func(ProgressSnapshot)
}

// ProgressSnapshot is an immutable read of ProgressInfo at one instant,
// the value delivered to progress subscribers.
type ProgressSnapshot struct {
	Status    string
	Details   string
	Fraction  float64
	Elapsed   time.Duration
	Remaining time.Duration
}

// NewProgressInfo returns a ProgressInfo whose Cancel calls cancel.
func NewProgressInfo(cancel context.CancelFunc) *ProgressInfo {
	return &ProgressInfo{cancel: cancel, start: time.Now()}
}

// OnProgress registers fn to run on every SetStatus, SetDetails and AddDone
// call.
// Callers that need delivery on a particular *task.Loop should wrap fn in
// Loop.Post themselves; ProgressInfo has no opinion about return contexts.
func (p *ProgressInfo) OnProgress(fn func(ProgressSnapshot)) {
	p.mu.Lock()
	p.onProgress = fn
	p.mu.Unlock()
}

// Cancel requests cancellation of the underlying operation.
func (p *ProgressInfo) Cancel() {
	if p.cancel != nil {
		p.cancel()
	}
}

// SetStatus updates the short status line (e.g. "Copying files…").
func (p *ProgressInfo) SetStatus(status string) {
	p.mu.Lock()
	p.status = status
	p.mu.Unlock()
	p.notify()
}

// SetDetails updates the longer details line (e.g. the current filename).
func (p *ProgressInfo) SetDetails(details string) {
	p.mu.Lock()
	p.details = details
	p.mu.Unlock()
	p.notify()
}

// SetTotal records how many units of work (usually bytes, sometimes
// files) the whole operation comprises, for fraction/remaining-time
// estimation.
func (p *ProgressInfo) SetTotal(total int64) {
	atomic.StoreInt64(&p.total, total)
}

// AddDone advances the completed-units counter and recomputes Fraction.
func (p *ProgressInfo) AddDone(delta int64) {
	done := atomic.AddInt64(&p.done, delta)
	total := atomic.LoadInt64(&p.total)

	p.mu.Lock()
	if total > 0 {
		p.fraction = float64(done) / float64(total)
	}
	p.mu.Unlock()
	p.notify()
}

func (p *ProgressInfo) notify() {
	p.mu.RLock()
	fn := p.onProgress
	snap := ProgressSnapshot{
		Status:   p.status,
		Details:  p.details,
		Fraction: p.fraction,
		Elapsed:  time.Since(p.start),
	}
	if snap.Fraction > 0 {
		total := snap.Elapsed.Seconds() / snap.Fraction
		snap.Remaining = time.Duration((total - snap.Elapsed.Seconds()) * float64(time.Second))
	}
	p.mu.RUnlock()

	if fn != nil {
		fn(snap)
	}
}

// Snapshot returns the current progress without registering a subscriber.
func (p *ProgressInfo) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	snap := ProgressSnapshot{
		Status:   p.status,
		Details:  p.details,
		Fraction: p.fraction,
		Elapsed:  time.Since(p.start),
	}
	return snap
}
