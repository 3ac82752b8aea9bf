// Package cmap provides a concurrent map sharded by key hash.
//
// Keys are strings (the key space stores binary-safe byte strings converted
// with string(b)). Each shard is guarded by its own RWMutex, so operations on
// the same key are serialized while unrelated keys proceed in parallel.
//
// Usage:
//
//	m := cmap.New[*entry]()
//	m.Set("key", e)
//	val, ok := m.Get("key")
//
// Thread Safety:
//
// All operations are thread-safe. Get and Range use RLock; mutating
// operations (Set, Compute, RemoveIf, RemoveInShard) use Lock. Range visits
// shards one at a time, so it does not observe a point-in-time view of the
// whole map.
package cmap
