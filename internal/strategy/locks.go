package strategy

import "sync"

type lockKey struct {
	ownerID string
	assetID uint
}

type refMutex struct {
	sync.Mutex
	refs int
}

// keyedMutex serialises work per (owner, asset) and drops idle entries.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[lockKey]*refMutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[lockKey]*refMutex)}
}

// Lock blocks until key is free and returns its release func.
func (k *keyedMutex) Lock(key lockKey) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
