package task

import (
	"context"
	"sync"

	"github.com/filedesk/filecore/corefs"
)

// Task is one unit of cancellable work dispatched to a Pool, with its
// completion callback delivered back onto a *Loop (spec.md §4.B). A Task
// is constructed once and run exactly once; it is not reusable.
type Task struct {
	ctx    context.Context
	cancel context.CancelFunc

	body       func(ctx context.Context) (interface{}, error)
	returnTo   *Loop
	onFinished func(result interface{}, err error)

	mu     sync.Mutex
	result interface{}
	err    error
	done   bool
}

// NewTask builds a Task whose body runs under a context derived from
// parent (or context.Background() if parent is nil), and whose completion
// callback is posted to returnTo once body returns.
func NewTask(parent context.Context, returnTo *Loop, body func(ctx context.Context) (interface{}, error)) *Task {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Task{
		ctx:      ctx,
		cancel:   cancel,
		body:     body,
		returnTo: returnTo,
	}
}

// OnFinished registers the continuation run on the Task's return Loop once
// the body has completed, successfully or not. Must be called before the
// Task is submitted; registering after submission may race with delivery.
func (t *Task) OnFinished(fn func(result interface{}, err error)) {
	t.onFinished = fn
}

// Cancel requests cooperative cancellation (spec.md property 7: cancelling
// a Task must make its Context observably Done, whether or not the body
// happens to check it before finishing anyway).
func (t *Task) Cancel() { t.cancel() }

// Context returns the Task's cancellation context, for a body that wants
// to select on ctx.Done() or pass it to a blocking I/O call.
func (t *Task) Context() context.Context { return t.ctx }

// Result returns the Task's outcome. Valid only after the return-context
// callback has run; calling it earlier returns the zero value.
func (t *Task) Result() (interface{}, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err
}

// run executes the body synchronously on the calling (worker) goroutine,
// then posts the completion callback to the Task's return Loop. Called
// only by a Pool worker; never call this directly.
func (t *Task) run() {
	result, err := t.body(t.ctx)

	t.mu.Lock()
	t.result = result
	t.err = err
	t.done = true
	t.mu.Unlock()

	t.cancel() // release the context's resources regardless of outcome

	if t.onFinished == nil {
		return
	}
	if t.returnTo == nil {
		t.onFinished(result, err)
		return
	}
	t.returnTo.Post(func() {
		t.onFinished(result, err)
	})
}

// Batch is the TaskBatch of spec.md §4.B: an ordered sequence of child
// Tasks run one at a time, where cancelling the batch cancels whichever
// child is currently running and skips the rest, so the whole batch acts
// as a single undo unit.
type Batch struct {
	ctx    context.Context
	cancel context.CancelFunc

	steps    []func(ctx context.Context) (interface{}, error)
	returnTo *Loop

	onFinished func(results []interface{}, err error)
}

// NewBatch builds an empty Batch. Steps are appended with Add and run in
// the order added once Submit is called.
func NewBatch(parent context.Context, returnTo *Loop) *Batch {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Batch{ctx: ctx, cancel: cancel, returnTo: returnTo}
}

// Add appends one step to the batch. Steps run strictly sequentially;
// step N+1 never starts unless step N returned without the batch's
// context having been cancelled in the meantime.
func (b *Batch) Add(step func(ctx context.Context) (interface{}, error)) {
	b.steps = append(b.steps, step)
}

// OnFinished registers the continuation run on the batch's return Loop
// once every step has run (or the batch was cancelled partway through).
// err is the first non-nil error encountered, if any; results holds one
// entry per step that actually ran.
func (b *Batch) OnFinished(fn func(results []interface{}, err error)) {
	b.onFinished = fn
}

// Cancel stops the batch: the currently running step observes its context
// as Done, and no further step is started.
func (b *Batch) Cancel() { b.cancel() }

// Context returns the batch-wide cancellation context, the parent of every
// individual step's Task.Context().
func (b *Batch) Context() context.Context { return b.ctx }

// run executes every step in order on the calling (worker) goroutine,
// stopping early if the batch's context is cancelled, then posts the
// completion callback to the batch's return Loop.
func (b *Batch) run() {
	results := make([]interface{}, 0, len(b.steps))
	var firstErr error

	for _, step := range b.steps {
		select {
		case <-b.ctx.Done():
			firstErr = cancelledErr(b.ctx, firstErr)
			goto finish
		default:
		}

		res, err := step(b.ctx)
		results = append(results, res)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if err != nil {
			break
		}
	}

finish:
	b.cancel()

	if b.onFinished == nil {
		return
	}
	if b.returnTo == nil {
		b.onFinished(results, firstErr)
		return
	}
	b.returnTo.Post(func() {
		b.onFinished(results, firstErr)
	})
}

func cancelledErr(ctx context.Context, existing error) error {
	if existing != nil {
		return existing
	}
	if ctx.Err() != nil {
		return corefs.Wrap(corefs.KindCancelled, ctx.Err())
	}
	return nil
}

// Submit dispatches the batch to pool as a single Task whose body runs
// every step of the batch in order, so a Pool sees exactly one queued
// item per batch rather than one per step.
func (b *Batch) Submit(pool *Pool) {
	t := &Task{ctx: b.ctx, cancel: b.cancel, returnTo: nil}
	t.body = func(ctx context.Context) (interface{}, error) {
		b.run()
		return nil, nil
	}
	pool.Submit(t)
}
