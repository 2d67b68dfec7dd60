package service

import (
	"sync"

	"github.com/zeebo/xxh3"
)

// stripedLock serialises work per player without keeping one mutex per
// player alive. Players hashing to the same stripe share a mutex.
type stripedLock struct {
	stripes []sync.Mutex
}

func newStripedLock(n int) *stripedLock {
	if n <= 0 {
		n = 1
	}
	return &stripedLock{stripes: make([]sync.Mutex, n)}
}

func (l *stripedLock) stripe(key string) int {
	return int(xxh3.HashString(key) % uint64(len(l.stripes)))
}

// lock acquires the stripe of key and returns its unlock func.
func (l *stripedLock) lock(key string) func() {
	m := &l.stripes[l.stripe(key)]
	m.Lock()
	return m.Unlock
}
