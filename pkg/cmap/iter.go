package cmap

// Range iterates over all key-value pairs.
//
// The callback returns false to stop iteration. Locks are taken shard by
// shard; callers needing a consistent view must exclude writers themselves.
func (m *Map[V]) Range(fn func(key string, value V) bool) {
	for _, s := range m.shards {
		if !s.rangeLocked(fn) {
			return
		}
	}
}

func (s *shard[V]) rangeLocked(fn func(key string, value V) bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, v := range s.items {
		if !fn(k, v) {
			return false
		}
	}
	return true
}

// RemoveInShard visits up to limit entries of one shard under its write lock
// and deletes those for which pred returns true. It returns the number of
// entries visited and removed. idx wraps modulo ShardCount, which lets a
// caller walk the map incrementally with a cursor.
func (m *Map[V]) RemoveInShard(idx, limit int, pred func(key string, value V) bool) (visited, removed int) {
	s := m.shards[idx%len(m.shards)]
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range s.items {
		if limit > 0 && visited >= limit {
			break
		}
		visited++
		if pred(k, v) {
			delete(s.items, k)
			removed++
		}
	}
	return visited, removed
}
