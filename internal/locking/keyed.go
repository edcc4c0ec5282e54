// Package locking serializes ledger-mutating operations per subscriber.
// Two concurrent payments against one subscriber must not interleave their
// running-balance computation; holders of the same key run one at a time
// while different subscribers proceed in parallel.
package locking

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyedMutex hands out one mutex per key, reclaiming entries once the last
// holder unlocks.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*entry)}
}

// Lock acquires the mutex for key and returns the corresponding unlock func.
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
