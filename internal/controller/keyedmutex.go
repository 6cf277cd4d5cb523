package controller

import (
	"sync"

	"github.com/debemdeboas/postkey/internal/model"
)

// keyedMutex serializes work per owner. Entries are dropped once nobody
// holds or waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[model.OwnerID]*ownerLock
}

type ownerLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[model.OwnerID]*ownerLock)}
}

// Lock blocks until owner is free and returns the matching unlock.
func (k *keyedMutex) Lock(owner model.OwnerID) func() {
	k.mu.Lock()
	l, ok := k.locks[owner]
	if !ok {
		l = &ownerLock{}
		k.locks[owner] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, owner)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
