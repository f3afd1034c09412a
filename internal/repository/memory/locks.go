package memory

import "sync"

// keyLocks hands out one mutex per record id so that read-modify-write
// cycles on the same record serialize while different records proceed in
// parallel. Locks are never removed; the map grows with the number of
// distinct ids, which is acceptable for a single-instance store.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*sync.Mutex)}
}

func (k *keyLocks) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	return l
}
