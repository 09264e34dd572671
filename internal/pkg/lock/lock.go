// Package lock provides keyed mutexes. The bot holds the lock of a chat while
// a command runs so that two commands in the same guild never interleave
// their read-modify-write cycles.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrLockCanceled is returned when the context ends before the lock is held.
var ErrLockCanceled = errors.New("lock acquisition canceled")

// entry is a mutex shared by every holder and waiter of one key. The token
// channel has capacity one: a sent token means the key is held.
type entry struct {
	token chan struct{}
	refs  int
}

// KeyLock hands out one mutex per key. Entries are dropped once nobody holds
// or waits for them.
type KeyLock struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty KeyLock.
func New() *KeyLock {
	return &KeyLock{entries: make(map[string]*entry)}
}

func (l *KeyLock) acquire(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{token: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *KeyLock) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// Lock blocks until key is held.
func (l *KeyLock) Lock(key string) {
	e := l.acquire(key)
	e.token <- struct{}{}
}

// LockContext blocks until key is held or ctx ends.
func (l *KeyLock) LockContext(ctx context.Context, key string) error {
	e := l.acquire(key)
	select {
	case e.token <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.release(key, e)
		return errors.Join(ErrLockCanceled, ctx.Err())
	}
}

// TryLock takes key if it is free.
func (l *KeyLock) TryLock(key string) bool {
	e := l.acquire(key)
	select {
	case e.token <- struct{}{}:
		return true
	default:
		l.release(key, e)
		return false
	}
}

// Unlock releases key. Unlocking a key that is not held panics, like
// sync.Mutex.
func (l *KeyLock) Unlock(key string) {
	l.mu.Lock()
	e, ok := l.entries[key]
	l.mu.Unlock()
	if !ok {
		panic("lock: unlock of unlocked key " + key)
	}
	select {
	case <-e.token:
	default:
		panic("lock: unlock of unlocked key " + key)
	}
	l.release(key, e)
}

// WithLock runs fn while holding key.
func (l *KeyLock) WithLock(key string, fn func() error) error {
	l.Lock(key)
	defer l.Unlock(key)
	return fn()
}

// IsLocked reports whether key is currently held.
func (l *KeyLock) IsLocked(key string) bool {
	l.mu.Lock()
	e, ok := l.entries[key]
	l.mu.Unlock()
	return ok && len(e.token) == 1
}

// Len returns the number of keys with holders or waiters.
func (l *KeyLock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
