/*

This file provides a mutex keyed by an arbitrary string, used to
serialize the read-current-vote -> check-cooldown -> upsert ->
record-change sequence per voter without serializing unrelated voters
against one another.

*/

package keyedmutex

import "sync"

// KeyedMutex hands out one *sync.Mutex per distinct key, created lazily
// on first use. The zero value is ready to use.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Lock acquires the mutex for key, blocking until it is available.
func (k *KeyedMutex) Lock(key string) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	k.mu.Unlock()

	lock.Lock()
}

// Unlock releases the mutex for key.
func (k *KeyedMutex) Unlock(key string) {
	k.mu.Lock()
	lock, ok := k.locks[key]
	k.mu.Unlock()

	if ok {
		lock.Unlock()
	}
}
