// Package keylock provides an arena of named mutexes: one lock per key,
// created on demand. Operations on distinct keys proceed fully in parallel;
// operations on the same key serialize. Used to give each buyer's cart an
// at-most-one-in-flight-mutation guarantee without a global lock.
package keylock

import "sync"

// Arena maps string keys to reference-counted mutexes. Entries are removed
// once their last holder releases, so the map does not grow with the key
// space, only with current contention.
type Arena struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New creates an empty lock arena.
func New() *Arena {
	return &Arena{locks: make(map[string]*entry)}
}

// Lock acquires the mutex for key, blocking until it is available.
func (a *Arena) Lock(key string) {
	a.mu.Lock()
	e, ok := a.locks[key]
	if !ok {
		e = &entry{}
		a.locks[key] = e
	}
	e.refs++
	a.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the mutex for key. Must pair with a prior Lock on the
// same key, as with sync.Mutex.
func (a *Arena) Unlock(key string) {
	a.mu.Lock()
	e, ok := a.locks[key]
	if ok {
		e.refs--
		if e.refs == 0 {
			delete(a.locks, key)
		}
	}
	a.mu.Unlock()

	if ok {
		e.mu.Unlock()
	}
}

// Do runs fn while holding the lock for key.
func (a *Arena) Do(key string, fn func()) {
	a.Lock(key)
	defer a.Unlock(key)
	fn()
}
