package shipment

import "sync"

// keyedMutex serializes work per shipment id. Entries are dropped once nobody holds or waits on them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uint64]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[uint64]*refLock)}
}

// Lock blocks until id is free and returns the unlock func.
func (k *keyedMutex) Lock(id uint64) func() {
	k.mu.Lock()
	l, ok := k.locks[id]
	if !ok {
		l = &refLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
