// Package backup copies saved snapshots to Google Cloud Storage.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// DefaultTimeout bounds a single upload or download.
const DefaultTimeout = time.Minute

// GCS uploads and downloads one snapshot object.
type GCS struct {
	client  *storage.Client
	bucket  string
	object  string
	timeout time.Duration

	mu sync.Mutex
}

// NewGCS creates a GCS backup target. Credentials come from the
// environment unless opts say otherwise.
func NewGCS(ctx context.Context, bucket, object string, opts ...option.ClientOption) (*GCS, error) {
	if bucket == "" || object == "" {
		return nil, errors.New("backup: bucket and object are required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("backup: gcs client: %w", err)
	}
	return &GCS{
		client:  client,
		bucket:  bucket,
		object:  object,
		timeout: DefaultTimeout,
	}, nil
}

// Upload copies the file at path to the configured object. A missing file
// is not an error.
func (g *GCS) Upload(ctx context.Context, path string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	w := g.client.Bucket(g.bucket).Object(g.object).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("backup: upload gs://%s/%s: %w", g.bucket, g.object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("backup: upload gs://%s/%s: %w", g.bucket, g.object, err)
	}
	return nil
}

// Download restores the object to path. It returns false when the object
// does not exist.
func (g *GCS) Download(ctx context.Context, path string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	rc, err := g.client.Bucket(g.bucket).Object(g.object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("backup: download gs://%s/%s: %w", g.bucket, g.object, err)
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(f, rc); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return false, err
	}
	if err := f.Close(); err != nil {
		return false, err
	}
	return true, os.Rename(tmp, path)
}

// Close releases the client.
func (g *GCS) Close() error {
	return g.client.Close()
}
