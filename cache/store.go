package cache

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"
)

// Store is an in-memory mirror of persisted entities keyed by id. Reads and
// writes are safe for concurrent use; last write wins per key.
type Store[K cmp.Ordered, V any] struct {
	mu      sync.RWMutex
	items   map[K]V
	key     func(V) K
	version atomic.Uint64
}

func NewStore[K cmp.Ordered, V any](key func(V) K) *Store[K, V] {
	return &Store[K, V]{items: map[K]V{}, key: key}
}

// Upsert inserts v or replaces the entry with the same key.
func (s *Store[K, V]) Upsert(v V) {
	s.mu.Lock()
	s.items[s.key(v)] = v
	s.mu.Unlock()
	s.version.Add(1)
}

func (s *Store[K, V]) Get(k K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[k]
	return v, ok
}

// List returns a snapshot of all entries ordered by key.
func (s *Store[K, V]) List() []V {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]K, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.items[k])
	}
	return out
}

// Replace swaps the whole content, as done by a full refresh from storage.
func (s *Store[K, V]) Replace(vs []V) {
	items := make(map[K]V, len(vs))
	for _, v := range vs {
		items[s.key(v)] = v
	}
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	s.version.Add(1)
}

func (s *Store[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Version increases on every write.
func (s *Store[K, V]) Version() uint64 {
	return s.version.Load()
}
