package storage

import (
	"context"
	"errors"

	"github.com/yndnr/respkv-go/internal/storage/memory"
)

// Common errors.
var (
	ErrClosed         = errors.New("storage: persister closed")
	ErrSealerRequired = errors.New("storage: snapshot is sealed but no encryption_key is configured")
)

// Persister stores and retrieves full snapshots of the key space.
type Persister interface {
	// Save replaces the persisted snapshot with entries.
	Save(ctx context.Context, entries []memory.Entry) error

	// Load returns the persisted snapshot. A persister with nothing saved
	// yet returns an empty slice and no error.
	Load(ctx context.Context) ([]memory.Entry, error)

	// Close releases resources held by the persister.
	Close() error
}

// Locator is implemented by persisters that write a single file.
type Locator interface {
	Path() string
}
