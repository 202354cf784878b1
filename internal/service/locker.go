package service

import (
	"context"
	"sync"
)

// IdentityLocker serializes work per identity. Different identities never
// contend; waiting for the same identity honors context cancellation.
type IdentityLocker struct {
	mu    sync.Mutex
	locks map[string]*identityLock
}

type identityLock struct {
	held chan struct{}
	refs int
}

// NewIdentityLocker creates an empty locker.
func NewIdentityLocker() *IdentityLocker {
	return &IdentityLocker{locks: make(map[string]*identityLock)}
}

// Lock blocks until the identity is free or ctx is done.
// The returned function releases the lock and must be called exactly once.
func (l *IdentityLocker) Lock(ctx context.Context, identity string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[identity]
	if !ok {
		entry = &identityLock{held: make(chan struct{}, 1)}
		l.locks[identity] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.held <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-entry.held
				l.release(identity, entry)
			})
		}, nil
	case <-ctx.Done():
		l.release(identity, entry)
		return nil, ctx.Err()
	}
}

func (l *IdentityLocker) release(identity string, entry *identityLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, identity)
	}
}

// size returns the number of identities currently tracked.
func (l *IdentityLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
