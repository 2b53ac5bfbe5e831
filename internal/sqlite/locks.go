package sqlite

import (
	"sort"
	"sync"
)

// typeLocks hands out one RWMutex per entity type name. Schema changes to a
// type hold its write lock; entity writes hold the read lock of their own
// type, so writers to unrelated types never wait on each other here.
type typeLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func newTypeLocks() *typeLocks {
	return &typeLocks{locks: make(map[string]*sync.RWMutex)}
}

func (l *typeLocks) get(name string) *sync.RWMutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[name]
	if !ok {
		m = &sync.RWMutex{}
		l.locks[name] = m
	}
	return m
}

// lock takes the write lock of every named type, in sorted order so two
// callers locking the same pair cannot deadlock. It returns the unlock func.
func (l *typeLocks) lock(names ...string) func() {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	var held []*sync.RWMutex
	for i, name := range sorted {
		if i > 0 && name == sorted[i-1] {
			continue
		}
		m := l.get(name)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// rlock takes the read lock of one type and returns the unlock func.
func (l *typeLocks) rlock(name string) func() {
	m := l.get(name)
	m.RLock()
	return m.RUnlock
}
