// Package tag implements the TagManager of spec.md §4.J: the persisted
// set of starred Locations, observable via a starred-changed event
// emitted on the main context.
package tag

import (
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/filedesk/filecore/corefs"
	"github.com/filedesk/filecore/corelog"
	"github.com/filedesk/filecore/task"
)

var starredBucket = []byte("starred")

// Manager is the process-wide starred-URI set. Construct with Open.
type Manager struct {
	db       *bolt.DB
	mainLoop *task.Loop

	mu       sync.RWMutex
	starred  map[corefs.Location]struct{}
	onChange func(uris []corefs.Location)
}

// Open loads (or creates) the bbolt-backed starred set at path, delivering
// starred-changed notifications on mainLoop. The URI set itself is the
// source of truth; bbolt is purely the persistence mechanism, per spec.md
// §4.J's "the storage format is an implementation detail".
func Open(path string, mainLoop *task.Loop) (*Manager, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, corefs.Wrap(corefs.KindIO, err)
	}

	m := &Manager{db: db, mainLoop: mainLoop, starred: map[corefs.Location]struct{}{}}
	if err := m.load(); err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

func (m *Manager) load() error {
	return m.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(starredBucket)
		if err != nil {
			return corefs.Wrap(corefs.KindIO, err)
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		return b.ForEach(func(k, _ []byte) error {
			m.starred[corefs.ParseLocation(string(k))] = struct{}{}
			return nil
		})
	})
}

// Close releases the underlying bbolt handle.
func (m *Manager) Close() error {
	return m.db.Close()
}

// OnStarredChanged registers the callback run, on the manager's main loop,
// after every Star/Unstar call that actually changed the set.
func (m *Manager) OnStarredChanged(fn func(uris []corefs.Location)) {
	m.onChange = fn
}

// Star marks every location in locs as starred, persists the change, and
// emits starred-changed with the full list of newly-starred locations (a
// no-op call with no actual change emits nothing).
func (m *Manager) Star(locs []corefs.Location) error {
	return m.mutate(locs, true)
}

// Unstar removes every location in locs from the starred set.
func (m *Manager) Unstar(locs []corefs.Location) error {
	return m.mutate(locs, false)
}

func (m *Manager) mutate(locs []corefs.Location, starred bool) error {
	var changed []corefs.Location

	m.mu.Lock()
	for _, loc := range locs {
		_, already := m.starred[loc]
		if starred == already {
			continue
		}
		if starred {
			m.starred[loc] = struct{}{}
		} else {
			delete(m.starred, loc)
		}
		changed = append(changed, loc)
	}
	m.mu.Unlock()

	if len(changed) == 0 {
		return nil
	}

	if err := m.persist(changed, starred); err != nil {
		corelog.Errorf(nil, "tag: persist failed: %v", err)
		return err
	}

	if m.onChange != nil {
		if m.mainLoop != nil {
			m.mainLoop.Post(func() { m.onChange(changed) })
		} else {
			m.onChange(changed)
		}
	}
	return nil
}

func (m *Manager) persist(locs []corefs.Location, starred bool) error {
	return m.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(starredBucket)
		for _, loc := range locs {
			key := []byte(loc.String())
			if starred {
				if err := b.Put(key, []byte{1}); err != nil {
					return corefs.Wrap(corefs.KindIO, err)
				}
			} else {
				if err := b.Delete(key); err != nil {
					return corefs.Wrap(corefs.KindIO, err)
				}
			}
		}
		return nil
	})
}

// IsStarred reports whether loc is currently in the starred set.
func (m *Manager) IsStarred(loc corefs.Location) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.starred[loc]
	return ok
}

// GetStarred returns every currently starred location, in no particular
// order.
func (m *Manager) GetStarred() []corefs.Location {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]corefs.Location, 0, len(m.starred))
	for loc := range m.starred {
		out = append(out, loc)
	}
	return out
}
