package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/respkv-go/internal/storage/memory"
)

// Badger defaults.
const (
	DefaultBadgerGCInterval  = 10 * time.Minute
	DefaultBadgerGCThreshold = 0.5
)

// expireLen prefixes every stored value with the expiry in Unix
// milliseconds, 0 meaning none.
const expireLen = 8

// BadgerConfig configures a BadgerPersister.
type BadgerConfig struct {
	Dir         string
	GCInterval  time.Duration
	GCThreshold float64
	SyncWrites  bool

	// Now filters expired keys on load.
	Now func() time.Time

	Logger *slog.Logger
}

// BadgerPersister keeps the key space in a Badger database, one record per
// key. Save writes the snapshot and deletes records for keys that are gone.
type BadgerPersister struct {
	db     *badger.DB
	cfg    BadgerConfig
	logger *slog.Logger

	// Serializes Save so two snapshots never interleave.
	saveMu sync.Mutex
	closed atomic.Bool

	lastGCTime       atomic.Int64 // Unix milliseconds
	gcRuns           atomic.Uint64
	metricsGCReclaim prometheus.Counter

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewBadgerPersister opens the database at cfg.Dir and starts value log GC.
func NewBadgerPersister(cfg BadgerConfig) (*BadgerPersister, error) {
	if cfg.Dir == "" {
		return nil, errors.New("badger: dir is required")
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = DefaultBadgerGCInterval
	}
	if cfg.GCThreshold <= 0 || cfg.GCThreshold >= 1 {
		cfg.GCThreshold = DefaultBadgerGCThreshold
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	opts := badger.DefaultOptions(cfg.Dir)
	opts.Logger = &badgerLogger{logger: cfg.Logger}
	opts.SyncWrites = cfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	p := &BadgerPersister{
		db:     db,
		cfg:    cfg,
		logger: cfg.Logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	go p.gcLoop()

	cfg.Logger.Info("badger persister started",
		"dir", cfg.Dir,
		"gc_interval", cfg.GCInterval)

	return p, nil
}

// Save replaces the stored records with entries.
func (p *BadgerPersister) Save(ctx context.Context, entries []memory.Entry) error {
	if p.closed.Load() {
		return ErrClosed
	}

	p.saveMu.Lock()
	defer p.saveMu.Unlock()

	wb := p.db.NewWriteBatch()
	defer wb.Cancel()

	keep := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		keep[e.Key] = struct{}{}
		if err := wb.Set([]byte(e.Key), encodeValue(e)); err != nil {
			return fmt.Errorf("badger: set %q: %w", e.Key, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	stale, err := p.staleKeys(keep)
	if err != nil {
		return err
	}
	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return fmt.Errorf("badger: delete: %w", err)
		}
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("badger: flush: %w", err)
	}

	p.logger.Debug("badger snapshot written", "keys", len(entries), "deleted", len(stale))
	return nil
}

func (p *BadgerPersister) staleKeys(keep map[string]struct{}) ([][]byte, error) {
	var stale [][]byte
	err := p.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			if _, ok := keep[string(key)]; !ok {
				stale = append(stale, it.Item().KeyCopy(nil))
			}
		}
		return nil
	})
	return stale, err
}

// Load returns every stored record that has not expired.
func (p *BadgerPersister) Load(ctx context.Context) ([]memory.Entry, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}

	now := p.cfg.Now()
	var (
		entries []memory.Entry
		expired int
	)

	err := p.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			e, err := decodeValue(string(item.Key()), raw)
			if err != nil {
				return err
			}
			if !e.ExpireAt.IsZero() && !now.Before(e.ExpireAt) {
				expired++
				continue
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger: load: %w", err)
	}

	p.logger.Info("badger snapshot read", "keys", len(entries), "expired", expired)
	return entries, nil
}

func encodeValue(e memory.Entry) []byte {
	buf := make([]byte, expireLen+len(e.Value))
	if !e.ExpireAt.IsZero() {
		binary.BigEndian.PutUint64(buf, uint64(e.ExpireAt.UnixMilli()))
	}
	copy(buf[expireLen:], e.Value)
	return buf
}

func decodeValue(key string, raw []byte) (memory.Entry, error) {
	if len(raw) < expireLen {
		return memory.Entry{}, fmt.Errorf("record %q: short value", key)
	}
	e := memory.Entry{Key: key, Value: raw[expireLen:]}
	if ms := binary.BigEndian.Uint64(raw); ms != 0 {
		e.ExpireAt = time.UnixMilli(int64(ms))
	}
	return e, nil
}

// GC runs value log garbage collection until nothing is left to rewrite.
// It returns the number of value log files rewritten.
func (p *BadgerPersister) GC() (int, error) {
	start := time.Now()

	runs := 0
	for {
		err := p.db.RunValueLogGC(p.cfg.GCThreshold)
		if errors.Is(err, badger.ErrNoRewrite) {
			break
		}
		if err != nil {
			return runs, fmt.Errorf("gc: %w", err)
		}
		runs++
	}

	p.lastGCTime.Store(time.Now().UnixMilli())
	p.gcRuns.Add(uint64(runs))
	if p.metricsGCReclaim != nil {
		p.metricsGCReclaim.Add(float64(runs))
	}

	p.logger.Debug("badger gc completed", "rewrites", runs, "elapsed", time.Since(start))
	return runs, nil
}

// Close stops GC and closes the database.
func (p *BadgerPersister) Close() error {
	if p.closed.Swap(true) {
		return nil
	}

	close(p.stopCh)
	<-p.doneCh

	if err := p.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	p.logger.Info("badger persister closed")
	return nil
}

// RegisterMetrics registers Badger size and GC metrics.
func (p *BadgerPersister) RegisterMetrics(registry prometheus.Registerer) *BadgerPersister {
	lsmSize := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "respkv",
		Subsystem: "badger",
		Name:      "lsm_size_bytes",
		Help:      "Badger LSM tree size in bytes",
	}, func() float64 {
		lsm, _ := p.db.Size()
		return float64(lsm)
	})

	vlogSize := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "respkv",
		Subsystem: "badger",
		Name:      "value_log_size_bytes",
		Help:      "Badger value log size in bytes",
	}, func() float64 {
		_, vlog := p.db.Size()
		return float64(vlog)
	})

	lastGC := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "respkv",
		Subsystem: "badger",
		Name:      "last_gc_timestamp_seconds",
		Help:      "Unix timestamp of the last Badger GC run",
	}, func() float64 {
		return float64(p.lastGCTime.Load()) / 1000.0
	})

	p.metricsGCReclaim = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "respkv",
		Subsystem: "badger",
		Name:      "gc_rewrites_total",
		Help:      "Value log files rewritten by Badger garbage collection",
	})

	registry.MustRegister(lsmSize, vlogSize, lastGC, p.metricsGCReclaim)
	return p
}

func (p *BadgerPersister) gcLoop() {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := p.GC(); err != nil {
				p.logger.Error("auto gc failed", "error", err)
			}
		case <-p.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
