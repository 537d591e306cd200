// Package config loads the module's single configuration surface:
// task-limit (the pool runner's worker count) and the starred-files
// persistence path, per spec.md §6. The file format is TOML via
// github.com/BurntSushi/toml, the same encoder the teacher's own
// indirect dependency set carries for preference files.
package config

import (
	"os"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/filedesk/filecore/corelog"
)

// Defaults match spec.md §6: task-limit defaults to 16.
const DefaultTaskLimit = 16

// Prefs is the on-disk preference document.
type Prefs struct {
	TaskLimit    int    `toml:"task-limit"`
	StarredFile  string `toml:"starred-file"`
}

// Watcher live-reloads a Prefs file and fans out changes to subscribers.
// Reload is driven by a ticker rather than an fsnotify-style watch: no
// filesystem-event-watching dependency appears anywhere in the retrieved
// example pack, so polling is the only option groundable in the corpus
// (see DESIGN.md).
type Watcher struct {
	path string

	mu       sync.RWMutex
	current  Prefs
	modTime  time.Time
	subs     []chan Prefs
	stop     chan struct{}
	stopOnce sync.Once
}

// NewWatcher loads path once and returns a Watcher serving it. A missing
// file is not an error: it yields the defaults.
func NewWatcher(path string) (*Watcher, error) {
	w := &Watcher{path: path, stop: make(chan struct{})}
	if err := w.reload(); err != nil {
		return nil, err
	}
	return w, nil
}

// Current returns the most recently loaded Prefs.
func (w *Watcher) Current() Prefs {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Subscribe returns a channel that receives every reloaded Prefs value for
// which TaskLimit or StarredFile actually changed. The channel is buffered;
// callers that fall behind only ever see the latest value on their next
// receive, not every intermediate one.
func (w *Watcher) Subscribe() <-chan Prefs {
	ch := make(chan Prefs, 1)
	w.mu.Lock()
	w.subs = append(w.subs, ch)
	w.mu.Unlock()
	return ch
}

// Run polls the preference file every interval until Stop is called.
func (w *Watcher) Run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			before := w.Current()
			if err := w.reload(); err != nil {
				corelog.Errorf(w, "reload %s: %v", w.path, err)
				continue
			}
			after := w.Current()
			if after != before {
				w.notify(after)
			}
		case <-w.stop:
			return
		}
	}
}

// Stop halts Run. Safe to call multiple times.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

func (w *Watcher) notify(p Prefs) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, ch := range w.subs {
		select {
		case ch <- p:
		default:
			// drop the stale pending value, keep only the latest
			select {
			case <-ch:
			default:
			}
			ch <- p
		}
	}
}

func (w *Watcher) reload() error {
	prefs := Prefs{TaskLimit: DefaultTaskLimit}

	info, err := os.Stat(w.path)
	switch {
	case os.IsNotExist(err):
		w.mu.Lock()
		w.current = prefs
		w.mu.Unlock()
		return nil
	case err != nil:
		return errors.Wrapf(err, "stat %s", w.path)
	}

	w.mu.RLock()
	unchanged := info.ModTime().Equal(w.modTime)
	w.mu.RUnlock()
	if unchanged {
		return nil
	}

	if _, err := toml.DecodeFile(w.path, &prefs); err != nil {
		return errors.Wrapf(err, "decode %s", w.path)
	}
	if prefs.TaskLimit <= 0 {
		prefs.TaskLimit = DefaultTaskLimit
	}

	w.mu.Lock()
	w.current = prefs
	w.modTime = info.ModTime()
	w.mu.Unlock()
	return nil
}
