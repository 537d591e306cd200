// Package search implements spec.md §4.I's SearchEngine: a composite of
// independent providers (indexed database, filesystem walk, recently-used
// documents, in-memory directory model) multicast from one Start call,
// deduplicated by URI and reported back as one composite completion.
package search

import (
	"context"
	"sync"

	"github.com/filedesk/filecore/corefs"
)

// Provider is one source of search hits. Run must respect ctx
// cancellation at every suspension point (filesystem call, index cursor
// step, batch emission) and call onDone exactly once when it either
// finishes or is cancelled.
type Provider interface {
	Run(ctx context.Context, query corefs.Query, emit func([]corefs.SearchHit), onDone func(error))
}

// Engine aggregates hits from every registered Provider, tagging each
// in-flight search with a monotonically increasing run id so a Start
// called while a previous run is still in flight supersedes it rather than
// racing with it for delivery.
type Engine struct {
	providers []Provider

	mu         sync.Mutex
	runID      int64
	cancelFunc context.CancelFunc
	seen       map[corefs.Location]struct{}
	pending    int
	providerN  int
	errCount   int
	lastErr    error

	onHits     func(hits []corefs.SearchHit)
	onComplete func(status corefs.RunStatus, err error)
}

// New returns an Engine over providers. The hit and completion callbacks
// must be set via the OnHits and OnComplete methods before the first Start
// call.
func New(providers ...Provider) *Engine {
	return &Engine{providers: providers}
}

// OnHits registers the callback invoked with each deduplicated batch of
// hits for the current run.
func (e *Engine) OnHits(fn func(hits []corefs.SearchHit)) {
	e.onHits = fn
}

// OnComplete registers the callback invoked once per run, with
// StatusNormal if this run finished undisturbed or StatusRestarting if a
// newer Start call superseded it before every provider reported done.
// err is non-nil only when every provider in the run errored, per spec.md
// §4.I's "only if all providers errored does the engine surface an error".
func (e *Engine) OnComplete(fn func(status corefs.RunStatus, err error)) {
	e.onComplete = fn
}

// Start cancels any in-flight run, begins a new one, and multicasts query
// to every provider. Returns the new run's id, mostly useful for tests.
func (e *Engine) Start(ctx context.Context, query corefs.Query) int64 {
	e.mu.Lock()
	superseded := e.cancelFunc != nil && e.pending > 0
	if e.cancelFunc != nil {
		e.cancelFunc()
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.runID++
	myRun := e.runID
	e.cancelFunc = cancel
	e.seen = make(map[corefs.Location]struct{})
	e.pending = len(e.providers)
	e.providerN = len(e.providers)
	e.errCount = 0
	e.lastErr = nil
	onComplete := e.onComplete
	e.mu.Unlock()

	// the superseded run's own providers report back under a stale run id
	// and are ignored, so its completion is delivered here
	if superseded && onComplete != nil {
		onComplete(corefs.StatusRestarting, nil)
	}

	if e.pending == 0 {
		e.finishRun(myRun)
		return myRun
	}

	for _, p := range e.providers {
		p := p
		go p.Run(runCtx, query, func(hits []corefs.SearchHit) {
			e.deliver(myRun, hits)
		}, func(err error) {
			e.providerDone(myRun, err)
		})
	}
	return myRun
}

// deliver filters hits whose URI has already been seen this run and
// forwards the rest to OnHits, dropping the batch entirely if a newer run
// has since superseded this one.
func (e *Engine) deliver(runID int64, hits []corefs.SearchHit) {
	e.mu.Lock()
	if runID != e.runID {
		e.mu.Unlock()
		return
	}
	fresh := make([]corefs.SearchHit, 0, len(hits))
	for _, h := range hits {
		if _, dup := e.seen[h.URI]; dup {
			continue
		}
		e.seen[h.URI] = struct{}{}
		fresh = append(fresh, h)
	}
	onHits := e.onHits
	e.mu.Unlock()

	if len(fresh) > 0 && onHits != nil {
		onHits(fresh)
	}
}

func (e *Engine) providerDone(runID int64, err error) {
	e.mu.Lock()
	if runID != e.runID {
		e.mu.Unlock()
		return
	}
	if err != nil {
		e.errCount++
		e.lastErr = err
	}
	e.pending--
	done := e.pending == 0
	e.mu.Unlock()

	if done {
		e.finishRun(runID)
	}
}

func (e *Engine) finishRun(runID int64) {
	e.mu.Lock()
	status := corefs.StatusNormal
	if runID != e.runID {
		status = corefs.StatusRestarting
	}
	var reportErr error
	if e.providerN > 0 && e.errCount == e.providerN {
		reportErr = e.lastErr
	}
	onComplete := e.onComplete
	e.mu.Unlock()

	if onComplete != nil {
		onComplete(status, reportErr)
	}
}

// CurrentRunID reports the id of the most recently started run, for
// callers and tests that want to correlate a Start call with its
// eventual OnComplete.
func (e *Engine) CurrentRunID() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runID
}
