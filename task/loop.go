package task

import "sync"

// Loop is the context runner of spec.md §4.A: a single-threaded, named
// event-loop context. Work posted to it is drained strictly FIFO, one
// callback run to completion before the next starts, so UI-thread
// continuations never contend with worker-pool I/O. Every FileNode's
// "return context" (spec.md §3) is a *Loop.
type Loop struct {
	name string

	queue chan func()
	done  chan struct{}

	mu     sync.Mutex
	closed bool

	startOnce sync.Once
	stopOnce  sync.Once
}

var (
	loopsMu sync.Mutex
	loops   = map[string]*Loop{}
)

// GetLoop returns the singleton Loop for name, creating and starting it on
// first access. Two calls with the same name always return the same
// object, per spec.md §4.A ("both runners are process-wide singletons ...
// under an internal mutex") — the same singleton-map-under-one-mutex
// pattern registry.Registry and backend/cache/handle.go's uploaderMap use.
func GetLoop(name string) *Loop {
	loopsMu.Lock()
	defer loopsMu.Unlock()
	if l, ok := loops[name]; ok {
		return l
	}
	l := &Loop{
		name:  name,
		queue: make(chan func(), 256),
		done:  make(chan struct{}),
	}
	l.start()
	loops[name] = l
	return l
}

func (l *Loop) start() {
	l.startOnce.Do(func() {
		go func() {
			for {
				select {
				case fn, ok := <-l.queue:
					if !ok {
						close(l.done)
						return
					}
					fn()
				}
			}
		}()
	})
}

// Post enqueues fn to run on this Loop's goroutine, FIFO, after every
// already-queued callback and before any callback posted later. Safe to
// call from any goroutine, including from within a callback already
// running on this Loop (it will run after the current one returns).
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return
	}
	l.queue <- fn
}

// Name returns the Loop's registry key.
func (l *Loop) Name() string { return l.name }

func (l *Loop) String() string { return "loop:" + l.name }

// Close stops draining new work and waits for in-flight callbacks already
// queued to finish running. Intended for tests and clean shutdown; a closed
// Loop's name is evicted from the registry so a later GetLoop recreates it.
func (l *Loop) Close() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()
		close(l.queue)
	})
	<-l.done

	loopsMu.Lock()
	if loops[l.name] == l {
		delete(loops, l.name)
	}
	loopsMu.Unlock()
}
