package cmap

import (
	"sync"

	"github.com/spaolacci/murmur3"
)

// DefaultShardCount is the default number of shards.
const DefaultShardCount = 32

// Map is a concurrent-safe sharded map keyed by string.
type Map[V any] struct {
	shards    []*shard[V]
	shardMask uint64
	seed      uint32
}

type shard[V any] struct {
	mu    sync.RWMutex
	items map[string]V
}

// Option configures a Map.
type Option func(*options)

type options struct {
	shardCount int
	seed       uint32
}

// WithShardCount sets the shard count. Values that are not a power of two
// fall back to DefaultShardCount.
func WithShardCount(n int) Option {
	return func(o *options) {
		o.shardCount = n
	}
}

// WithSeed sets the murmur3 seed used for shard selection.
func WithSeed(seed uint32) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// New creates a new sharded map.
func New[V any](opts ...Option) *Map[V] {
	o := options{shardCount: DefaultShardCount}
	for _, opt := range opts {
		opt(&o)
	}

	n := o.shardCount
	if n <= 0 || n&(n-1) != 0 {
		n = DefaultShardCount
	}

	m := &Map[V]{
		shards:    make([]*shard[V], n),
		shardMask: uint64(n - 1),
		seed:      o.seed,
	}
	for i := range m.shards {
		m.shards[i] = &shard[V]{items: make(map[string]V)}
	}
	return m
}

// shardIndex returns the shard index for a key.
func (m *Map[V]) shardIndex(key string) int {
	h := murmur3.Sum64WithSeed([]byte(key), m.seed)
	return int(h & m.shardMask)
}

func (m *Map[V]) getShard(key string) *shard[V] {
	return m.shards[m.shardIndex(key)]
}

// Get retrieves a value by key.
func (m *Map[V]) Get(key string) (V, bool) {
	s := m.getShard(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.items[key]
	return val, ok
}

// Set stores a key-value pair.
func (m *Map[V]) Set(key string, value V) {
	s := m.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
}

// Action tells Compute what to do with the value returned by its callback.
type Action int

const (
	// Keep leaves the map unchanged.
	Keep Action = iota
	// Store writes the returned value.
	Store
	// Remove deletes the key.
	Remove
)

// Compute runs fn under the shard write lock. fn receives the current value
// and whether it exists, and returns a value plus the Action to apply.
// The value returned by fn is passed through to the caller.
func (m *Map[V]) Compute(key string, fn func(current V, exists bool) (V, Action)) V {
	s := m.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.items[key]
	next, action := fn(current, exists)
	switch action {
	case Store:
		s.items[key] = next
	case Remove:
		delete(s.items, key)
	}
	return next
}

// RemoveIf deletes key when it exists and pred returns true for its value.
// The check and the delete happen under the same lock.
func (m *Map[V]) RemoveIf(key string, pred func(V) bool) bool {
	s := m.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.items[key]
	if !ok || !pred(v) {
		return false
	}
	delete(s.items, key)
	return true
}

// Count returns the total number of items.
func (m *Map[V]) Count() int {
	count := 0
	for _, s := range m.shards {
		s.mu.RLock()
		count += len(s.items)
		s.mu.RUnlock()
	}
	return count
}

// Clear removes all items.
func (m *Map[V]) Clear() {
	for _, s := range m.shards {
		s.mu.Lock()
		s.items = make(map[string]V)
		s.mu.Unlock()
	}
}

// ShardCount returns the number of shards.
func (m *Map[V]) ShardCount() int {
	return len(m.shards)
}
