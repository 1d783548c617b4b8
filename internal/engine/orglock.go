package engine

import "sync"

// orgLocks hands out one RWMutex per organization. Bulk recalculation takes
// the write side (TryLock, so a second request is rejected instead of
// queued) while per-metric evaluations take the read side; different
// organizations never contend.
type orgLocks struct {
	mu sync.Mutex
	m  map[uint]*sync.RWMutex
}

func newOrgLocks() *orgLocks {
	return &orgLocks{m: make(map[uint]*sync.RWMutex)}
}

func (l *orgLocks) get(orgID uint) *sync.RWMutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.m[orgID]
	if !ok {
		lock = &sync.RWMutex{}
		l.m[orgID] = lock
	}
	return lock
}
