// Package storage persists the in-memory key space.
//
// A Persister writes and reads whole snapshots of the key space:
//
//   - FilePersister: an RDB file at dir/dbfilename, optionally sealed
//   - BadgerPersister: a Badger database, one record per key
//
// Manager ties a Persister to a memory.Store. It serves SAVE, BGSAVE and
// LASTSAVE, loads the key space at startup and runs the autosave rules.
package storage
