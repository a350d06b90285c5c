package services

import (
	"context"
	"sync"
)

// keyLocks hands out one mutex per system key. Each lock is a buffered
// channel so waiters can give up when their context ends.
type keyLocks struct {
	mu    sync.RWMutex
	locks map[string]chan struct{}
}

func newKeyLocks(keys []string) *keyLocks {
	kl := &keyLocks{locks: make(map[string]chan struct{}, len(keys))}
	for _, k := range keys {
		kl.locks[k] = make(chan struct{}, 1)
	}
	return kl
}

func (kl *keyLocks) get(key string) chan struct{} {
	kl.mu.RLock()
	ch, exists := kl.locks[key]
	kl.mu.RUnlock()
	if exists {
		return ch
	}

	kl.mu.Lock()
	defer kl.mu.Unlock()

	// Double-check after acquiring write lock
	if ch, exists := kl.locks[key]; exists {
		return ch
	}
	ch = make(chan struct{}, 1)
	kl.locks[key] = ch
	return ch
}

// Lock blocks until the key is free or ctx is done
func (kl *keyLocks) Lock(ctx context.Context, key string) (func(), error) {
	ch := kl.get(key)
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryLock acquires the key only if nobody holds it
func (kl *keyLocks) TryLock(key string) (func(), bool) {
	ch := kl.get(key)
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, true
	default:
		return nil, false
	}
}
