package keylock

import (
	"context"
	"sync"
)

type entry struct {
	sem  chan struct{}
	refs int
}

// MemoryLocker is an in-process keyed mutex. Entries are dropped once no
// goroutine holds or waits on them.
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{entries: make(map[string]*entry)}
}

// Lock blocks until key is free or ctx is done.
func (m *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		m.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			m.release(key, e)
		})
	}, nil
}

func (m *MemoryLocker) release(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}

// Len reports how many keys are currently tracked.
func (m *MemoryLocker) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
