package graphstore

import "sync"

// lockRegistry hands out one RWMutex per company id. Writers take the write
// lock so each company has a single writer; capture loads take the read lock
// so they never observe a half-applied batch.
type lockRegistry struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func newLockRegistry() *lockRegistry {
	return &lockRegistry{locks: make(map[string]*sync.RWMutex)}
}

func (r *lockRegistry) get(companyID string) *sync.RWMutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[companyID]
	if !ok {
		l = &sync.RWMutex{}
		r.locks[companyID] = l
	}
	return l
}
