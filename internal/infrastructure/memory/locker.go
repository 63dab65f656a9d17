package memory

import (
	"context"
	"fmt"
	"sync"
)

// ItemLocker is an in-process keyed mutex. Entries are reference counted so
// idle items do not accumulate.
type ItemLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

func NewItemLocker() *ItemLocker {
	return &ItemLocker{locks: make(map[string]*keyedLock)}
}

// Lock blocks until the item's lock is held or ctx is done.
func (l *ItemLocker) Lock(ctx context.Context, itemID string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[itemID]
	if !ok {
		kl = &keyedLock{ch: make(chan struct{}, 1)}
		l.locks[itemID] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(itemID, kl)
		return nil, fmt.Errorf("lock item %s: %w", itemID, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.ch
			l.release(itemID, kl)
		})
	}, nil
}

func (l *ItemLocker) release(itemID string, kl *keyedLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, itemID)
	}
}

// held reports how many items currently have waiters or holders.
func (l *ItemLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
