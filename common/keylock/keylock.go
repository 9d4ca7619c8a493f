package keylock

import (
	"sync"
	"time"
)

type bucket struct {
	expires time.Time
	handle  int64
}

// KeyLock holds per key locks that expire on their own after a ttl,
// so a holder that never unlocks (a panel the user walked away from) can't wedge the key forever
type KeyLock[K comparable] struct {
	locks map[K]*bucket
	mu    sync.Mutex
	c     int64
}

func NewKeyLock[K comparable]() *KeyLock[K] {
	return &KeyLock[K]{
		locks: make(map[K]*bucket),
	}
}

// Lock blocks until key is locked for ttl or timeout passes.
// It returns -1 on timeout, otherwise a handle to pass to Unlock and Extend.
func (kl *KeyLock[K]) Lock(key K, timeout time.Duration, ttl time.Duration) (handle int64) {
	started := time.Now()

	for {
		if handle := kl.TryLock(key, ttl); handle != -1 {
			return handle
		}

		if time.Since(started) >= timeout {
			return -1
		}

		time.Sleep(time.Millisecond * 100)
	}
}

// TryLock locks key for ttl if it's free or expired, returning -1 otherwise
func (kl *KeyLock[K]) TryLock(key K, ttl time.Duration) int64 {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	now := time.Now()
	if b, ok := kl.locks[key]; ok && b != nil && now.Before(b.expires) {
		return -1
	}

	kl.c++
	kl.locks[key] = &bucket{
		handle:  kl.c,
		expires: now.Add(ttl),
	}
	return kl.c
}

// Extend pushes the expiry of a held lock to now+ttl, false if the handle no longer owns the key
func (kl *KeyLock[K]) Extend(key K, handle int64, ttl time.Duration) bool {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	b, ok := kl.locks[key]
	if !ok || b == nil || b.handle != handle || time.Now().After(b.expires) {
		return false
	}

	b.expires = time.Now().Add(ttl)
	return true
}

func (kl *KeyLock[K]) Unlock(key K, handle int64) {
	kl.mu.Lock()
	if b, ok := kl.locks[key]; ok && b != nil && b.handle == handle {
		// only the current holder may delete it
		delete(kl.locks, key)
	}
	kl.mu.Unlock()
}

// Held reports whether key is currently locked by anyone
func (kl *KeyLock[K]) Held(key K) bool {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	b, ok := kl.locks[key]
	return ok && b != nil && time.Now().Before(b.expires)
}
