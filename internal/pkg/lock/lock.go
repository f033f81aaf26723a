// Package lock provides keyed locking for account and session serialization.
package lock

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

// entry is a mutex shared by every goroutine holding or waiting for one key.
type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyedLock serializes work per key. Entries are dropped once no goroutine
// holds or waits for them, so the map only grows with live contention.
type KeyedLock[K cmp.Ordered] struct {
	mu      sync.Mutex
	entries map[K]*entry
}

// UserLock serializes balance mutations per account id.
type UserLock = KeyedLock[int64]

// SessionLock serializes state transitions per session id.
type SessionLock = KeyedLock[string]

// New creates an empty KeyedLock.
func New[K cmp.Ordered]() *KeyedLock[K] {
	return &KeyedLock[K]{entries: make(map[K]*entry)}
}

// NewUserLock creates a lock keyed by account id.
func NewUserLock() *UserLock {
	return New[int64]()
}

// NewSessionLock creates a lock keyed by session id.
func NewSessionLock() *SessionLock {
	return New[string]()
}

func (l *KeyedLock[K]) ref(key K) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *KeyedLock[K]) unref(key K) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		return nil
	}
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
	return e
}

// Lock acquires the lock for key.
func (l *KeyedLock[K]) Lock(key K) {
	l.ref(key).mu.Lock()
}

// Unlock releases the lock for key.
func (l *KeyedLock[K]) Unlock(key K) {
	if e := l.unref(key); e != nil {
		e.mu.Unlock()
	}
}

// LockContext acquires the lock for key or gives up when ctx is done.
func (l *KeyedLock[K]) LockContext(ctx context.Context, key K) error {
	e := l.ref(key)
	if e.mu.TryLock() {
		return nil
	}

	done := make(chan struct{})
	go func() {
		e.mu.Lock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		// The waiter still gets the mutex eventually and hands it straight back.
		go func() {
			<-done
			l.Unlock(key)
		}()
		return ctx.Err()
	}
}

// LockWithTimeout is LockContext bounded by timeout. It reports ErrLockTimeout on expiry.
func (l *KeyedLock[K]) LockWithTimeout(ctx context.Context, key K, timeout time.Duration) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := l.LockContext(timeoutCtx, key); err != nil {
		if ctx.Err() == nil {
			return ErrLockTimeout
		}
		return err
	}
	return nil
}

// LockAll acquires every distinct key in ascending order and returns a func
// releasing them. Callers locking several keys must go through LockAll so
// that two callers never wait on each other in opposite order.
func (l *KeyedLock[K]) LockAll(keys ...K) (unlock func()) {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	for _, k := range sorted {
		l.Lock(k)
	}
	return func() {
		for i := len(sorted) - 1; i >= 0; i-- {
			l.Unlock(sorted[i])
		}
	}
}

// Len returns the number of keys currently held or awaited.
func (l *KeyedLock[K]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
