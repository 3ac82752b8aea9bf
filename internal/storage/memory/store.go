package memory

import (
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/respkv-go/internal/infra/clock"
	"github.com/yndnr/respkv-go/pkg/cmap"
	"github.com/yndnr/respkv-go/pkg/glob"
)

// Sentinel TTL results, mirroring the TTL/PTTL replies.
const (
	// NoKey is returned by TTL for a missing or expired key.
	NoKey time.Duration = -2
	// NoExpiry is returned by TTL for a key without an expiration.
	NoExpiry time.Duration = -1
)

// entry is never mutated after it is stored; updates swap the pointer.
type entry struct {
	value    []byte
	expireAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && !now.Before(e.expireAt)
}

// Entry is an exported copy of a key space record, used for persistence.
type Entry struct {
	Key      string
	Value    []byte
	ExpireAt time.Time // zero means no expiry
}

// SetOptions modifies SetWithOptions.
type SetOptions struct {
	ExpireAt time.Time // zero means no expiry
	NX       bool      // only set if the key does not exist
	XX       bool      // only set if the key exists
	KeepTTL  bool      // retain the existing expiration
}

// Store is the shared key space.
type Store struct {
	data  *cmap.Map[*entry]
	clock clock.Clock

	// Shared for single-key operations, exclusive for whole-space ones.
	mu sync.RWMutex

	expired atomic.Uint64
	// dirty counts writes, for save rules.
	dirty atomic.Uint64
}

// Option configures the Store.
type Option func(*storeOptions)

type storeOptions struct {
	clock  clock.Clock
	shards int
}

// WithClock sets the time source used for expiry.
func WithClock(c clock.Clock) Option {
	return func(o *storeOptions) {
		o.clock = c
	}
}

// WithShardCount sets the number of map shards (power of two).
func WithShardCount(n int) Option {
	return func(o *storeOptions) {
		o.shards = n
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	o := storeOptions{clock: clock.Real{}, shards: cmap.DefaultShardCount}
	for _, opt := range opts {
		opt(&o)
	}

	return &Store{
		data:  cmap.New[*entry](cmap.WithShardCount(o.shards)),
		clock: o.clock,
	}
}

// Now returns the store's current time.
func (s *Store) Now() time.Time {
	return s.clock.Now()
}

// Get returns the value of key. The returned slice must not be modified.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.live(key)
	if !ok {
		return nil, false
	}
	return e.value, true
}

// live returns the entry for key, evicting it when expired. Callers hold
// s.mu in shared mode.
func (s *Store) live(key string) (*entry, bool) {
	e, ok := s.data.Get(key)
	if !ok {
		return nil, false
	}
	now := s.clock.Now()
	if !e.expired(now) {
		return e, true
	}
	// Re-check under the shard lock: a concurrent SET may have replaced it.
	if s.data.RemoveIf(key, func(cur *entry) bool { return cur.expired(now) }) {
		s.expired.Add(1)
	}
	return nil, false
}

// Set stores value under key, replacing any previous entry and its
// expiration. A zero expireAt means no expiry. The store takes ownership of
// value.
func (s *Store) Set(key string, value []byte, expireAt time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.data.Set(key, &entry{value: value, expireAt: expireAt})
	s.dirty.Add(1)
}

// SetWithOptions stores value under key subject to opts and reports whether
// the write happened.
func (s *Store) SetWithOptions(key string, value []byte, opts SetOptions) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	written := false
	s.data.Compute(key, func(cur *entry, ok bool) (*entry, cmap.Action) {
		exists := ok && !cur.expired(now)
		if ok && !exists {
			s.expired.Add(1)
		}

		if (opts.NX && exists) || (opts.XX && !exists) {
			if ok && !exists {
				return nil, cmap.Remove
			}
			return nil, cmap.Keep
		}

		expireAt := opts.ExpireAt
		if opts.KeepTTL && exists {
			expireAt = cur.expireAt
		}
		written = true
		return &entry{value: value, expireAt: expireAt}, cmap.Store
	})
	if written {
		s.dirty.Add(1)
	}
	return written
}

// Delete removes key and reports whether a live entry existed.
func (s *Store) Delete(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	existed := false
	s.data.Compute(key, func(cur *entry, ok bool) (*entry, cmap.Action) {
		if !ok {
			return nil, cmap.Keep
		}
		if cur.expired(now) {
			s.expired.Add(1)
		} else {
			existed = true
		}
		return nil, cmap.Remove
	})
	if existed {
		s.dirty.Add(1)
	}
	return existed
}

// Exists reports whether key holds a live entry.
func (s *Store) Exists(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Expire sets the expiration of key to at. An instant at or before now
// deletes the key. It reports whether the key existed.
func (s *Store) Expire(key string, at time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	existed := false
	s.data.Compute(key, func(cur *entry, ok bool) (*entry, cmap.Action) {
		if !ok {
			return nil, cmap.Keep
		}
		if cur.expired(now) {
			s.expired.Add(1)
			return nil, cmap.Remove
		}
		existed = true
		if !now.Before(at) {
			return nil, cmap.Remove
		}
		return &entry{value: cur.value, expireAt: at}, cmap.Store
	})
	if existed {
		s.dirty.Add(1)
	}
	return existed
}

// Persist clears the expiration of key. It reports whether an expiration
// was removed.
func (s *Store) Persist(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	cleared := false
	s.data.Compute(key, func(cur *entry, ok bool) (*entry, cmap.Action) {
		if !ok {
			return nil, cmap.Keep
		}
		if cur.expired(now) {
			s.expired.Add(1)
			return nil, cmap.Remove
		}
		if cur.expireAt.IsZero() {
			return nil, cmap.Keep
		}
		cleared = true
		return &entry{value: cur.value}, cmap.Store
	})
	if cleared {
		s.dirty.Add(1)
	}
	return cleared
}

// TTL returns the remaining time to live of key, NoKey when the key is
// absent or NoExpiry when it has no expiration.
func (s *Store) TTL(key string) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.live(key)
	if !ok {
		return NoKey
	}
	if e.expireAt.IsZero() {
		return NoExpiry
	}
	return e.expireAt.Sub(s.clock.Now())
}

// Keys returns the live keys matching a glob pattern, sorted.
func (s *Store) Keys(pattern string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	all := pattern == "*"
	var keys []string
	s.data.Range(func(key string, e *entry) bool {
		if e.expired(now) {
			return true
		}
		if all || glob.Match(pattern, key) {
			keys = append(keys, key)
		}
		return true
	})
	slices.Sort(keys)
	return keys
}

// Len returns the number of live keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	n := 0
	s.data.Range(func(_ string, e *entry) bool {
		if !e.expired(now) {
			n++
		}
		return true
	})
	return n
}

// Flush removes every key and returns how many entries were dropped.
func (s *Store) Flush() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.data.Count()
	s.data.Clear()
	s.dirty.Add(uint64(n))
	return n
}

// Snapshot returns a consistent copy of all live entries, sorted by key.
// Values are shared with the store and must not be modified.
func (s *Store) Snapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	entries := make([]Entry, 0, s.data.Count())
	s.data.Range(func(key string, e *entry) bool {
		if !e.expired(now) {
			entries = append(entries, Entry{Key: key, Value: e.value, ExpireAt: e.expireAt})
		}
		return true
	})
	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.Key, b.Key)
	})
	return entries
}

// Restore replaces the whole key space with entries. Entries already
// expired are skipped. It returns the number of keys loaded.
func (s *Store) Restore(entries []Entry) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.data.Clear()
	loaded := 0
	for _, e := range entries {
		stored := &entry{value: e.Value, expireAt: e.ExpireAt}
		if stored.expired(now) {
			continue
		}
		s.data.Set(e.Key, stored)
		loaded++
	}
	return loaded
}

// Dirty returns the number of writes since the store was created. Callers
// compare two readings to learn whether anything changed in between.
func (s *Store) Dirty() uint64 {
	return s.dirty.Load()
}

// ExpiredTotal returns the number of keys evicted because they expired.
func (s *Store) ExpiredTotal() uint64 {
	return s.expired.Load()
}

// ShardCount returns the number of map shards.
func (s *Store) ShardCount() int {
	return s.data.ShardCount()
}

// SweepShard evicts up to limit expired entries from one shard, examining
// at most limit entries. It returns the number examined and evicted.
func (s *Store) SweepShard(idx, limit int) (visited, removed int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	visited, removed = s.data.RemoveInShard(idx, limit, func(_ string, e *entry) bool {
		return e.expired(now)
	})
	s.expired.Add(uint64(removed))
	return visited, removed
}

// SweepExpired walks every shard once, examining up to limit entries in
// total (0 means no limit), and returns the number of keys evicted.
func (s *Store) SweepExpired(limit int) int {
	shards := s.ShardCount()
	perShard := 0
	if limit > 0 {
		perShard = max(limit/shards, 1)
	}

	total := 0
	for idx := 0; idx < shards; idx++ {
		_, removed := s.SweepShard(idx, perShard)
		total += removed
	}
	return total
}
