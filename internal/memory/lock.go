package memory

import (
	"context"
	"sync"
	"time"
)

// SessionLocker grants at most one holder per key. TryLock never blocks: it
// reports ok=false when the key is already held.
type SessionLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), ok bool, err error)
}

// LocalLocker is an in-process SessionLocker for single-node deployments
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

// NewLocalLocker creates an empty in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		held: make(map[string]time.Time),
		now:  time.Now,
	}
}

// TryLock acquires key unless an unexpired holder exists
func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expires, ok := l.held[key]; ok && (expires.IsZero() || now.Before(expires)) {
		return nil, false, nil
	}

	// zero means held until released
	var expires time.Time
	if ttl > 0 {
		expires = now.Add(ttl)
	}
	l.held[key] = expires

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			// a holder that outlived its ttl must not release a newer lock
			if l.held[key].Equal(expires) {
				delete(l.held, key)
			}
		})
	}
	return unlock, true, nil
}
