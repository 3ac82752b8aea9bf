package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/lo"

	"github.com/yndnr/respkv-go/internal/storage/memory"
	"github.com/yndnr/respkv-go/internal/storage/rdb"
	"github.com/yndnr/respkv-go/internal/storage/snapshot"
)

// FileConfig configures a FilePersister.
type FileConfig struct {
	// Dir and DBFilename are read on every save and load, so CONFIG SET
	// changes apply to the next operation.
	Dir        func() string
	DBFilename func() string

	// Sealer encrypts the file when set.
	Sealer *snapshot.Sealer

	// Now stamps the ctime aux field and filters expired keys on load.
	Now func() time.Time

	Logger *slog.Logger
}

// FilePersister keeps the key space in an RDB file.
type FilePersister struct {
	cfg    FileConfig
	logger *slog.Logger
}

// NewFilePersister creates a FilePersister.
func NewFilePersister(cfg FileConfig) (*FilePersister, error) {
	if cfg.Dir == nil || cfg.DBFilename == nil {
		return nil, errors.New("storage: dir and dbfilename are required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &FilePersister{cfg: cfg, logger: cfg.Logger}, nil
}

// Path returns the current snapshot path.
func (p *FilePersister) Path() string {
	return filepath.Join(p.cfg.Dir(), p.cfg.DBFilename())
}

// Save writes entries to a temporary file in the snapshot directory and
// renames it over the previous snapshot.
func (p *FilePersister) Save(ctx context.Context, entries []memory.Entry) error {
	var buf bytes.Buffer
	records := lo.Map(entries, func(e memory.Entry, _ int) rdb.Entry {
		return rdb.Entry(e)
	})
	if err := rdb.Write(&buf, records, p.cfg.Now()); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	data := buf.Bytes()
	if p.cfg.Sealer != nil {
		sealed, err := p.cfg.Sealer.Seal(data)
		if err != nil {
			return err
		}
		data = sealed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	path := p.Path()
	if err := writeFileAtomic(path, data); err != nil {
		return err
	}

	p.logger.Debug("snapshot written", "path", path, "keys", len(entries), "bytes", len(data))
	return nil
}

// Load reads the snapshot file. A missing file yields an empty key space.
func (p *FilePersister) Load(ctx context.Context) ([]memory.Entry, error) {
	path := p.Path()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		p.logger.Info("no snapshot found, starting empty", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	if snapshot.IsSealed(data) {
		if p.cfg.Sealer == nil {
			return nil, ErrSealerRequired
		}
		if data, err = p.cfg.Sealer.Open(data); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dump, err := rdb.Read(bytes.NewReader(data), p.cfg.Now())
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}

	p.logger.Info("snapshot read",
		"path", path,
		"version", dump.Version,
		"keys", len(dump.Entries),
		"expired", dump.Expired,
		"skipped", dump.Skipped)

	return lo.Map(dump.Entries, func(e rdb.Entry, _ int) memory.Entry {
		return memory.Entry(e)
	}), nil
}

// Close is a no-op; files are not held open between saves.
func (p *FilePersister) Close() error {
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "temp-*.rdb")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(fmt.Errorf("write temp file: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(fmt.Errorf("sync temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}
