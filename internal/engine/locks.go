package engine

import (
	"sort"
	"sync"
)

// keyedMutex serializes mutations per order. Multi-order operations lock
// their keys in sorted order so two CHEs shorting across the same orders
// cannot deadlock. This is the critical section that keeps one inventory
// unit from being allocated to two CHEs at once.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*lockEntry)}
}

// lockAll acquires every key (deduplicated, sorted) and returns the release
// function.
func (k *keyedMutex) lockAll(keys []string) func() {
	uniq := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if key != "" && !seen[key] {
			seen[key] = true
			uniq = append(uniq, key)
		}
	}
	sort.Strings(uniq)

	entries := make([]*lockEntry, 0, len(uniq))
	for _, key := range uniq {
		k.mu.Lock()
		entry, ok := k.locks[key]
		if !ok {
			entry = &lockEntry{}
			k.locks[key] = entry
		}
		entry.refs++
		k.mu.Unlock()

		entry.mu.Lock()
		entries = append(entries, entry)
	}

	keysCopy := uniq
	return func() {
		for i := len(entries) - 1; i >= 0; i-- {
			entries[i].mu.Unlock()
			k.mu.Lock()
			entries[i].refs--
			if entries[i].refs == 0 {
				delete(k.locks, keysCopy[i])
			}
			k.mu.Unlock()
		}
	}
}
