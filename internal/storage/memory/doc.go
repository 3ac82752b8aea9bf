// Package memory provides the in-memory key space served by respkv.
//
// Keys are case-sensitive byte strings (held as Go strings) mapped to
// immutable entries carrying the value and an optional absolute expiration
// instant.
//
// Thread Safety:
//
// Entries live in a murmur3 sharded map (pkg/cmap). Single-key operations
// hold the store's global lock in shared mode and then the shard lock of
// their key, which makes every operation on one key linearizable.
// Whole-space operations (Keys, Len, Snapshot, Restore, Flush) take the
// global lock exclusively and therefore observe or replace a consistent
// state.
//
// Expiry:
//
// Expiry is lazy. Every operation that inspects a key first checks its
// expiration against the store's clock; an entry at or past its expiry is
// absent and is removed as a side effect. The Sweeper evicts expired keys in
// the background without changing what clients observe.
package memory
