package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/respkv-go/internal/storage/memory"
)

// DefaultCheckInterval is how often the autosave loop evaluates save rules.
const DefaultCheckInterval = time.Second

// ErrInvalidSaveRules is returned for a malformed "save" parameter.
var ErrInvalidSaveRules = errors.New("storage: invalid save rules")

// SaveRule triggers a save once Changes writes happened and at least
// Interval passed since the last save.
type SaveRule struct {
	Interval time.Duration
	Changes  uint64
}

// ParseSaveRules parses "<seconds> <changes> [<seconds> <changes> ...]".
// An empty string disables autosave.
func ParseSaveRules(s string) ([]SaveRule, error) {
	fields := strings.Fields(s)
	if len(fields)%2 != 0 {
		return nil, ErrInvalidSaveRules
	}

	rules := make([]SaveRule, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		secs, err := strconv.ParseUint(fields[i], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSaveRules, fields[i])
		}
		changes, err := strconv.ParseUint(fields[i+1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSaveRules, fields[i+1])
		}
		rules = append(rules, SaveRule{Interval: time.Duration(secs) * time.Second, Changes: changes})
	}
	return rules, nil
}

// SaveObserver records save outcomes.
type SaveObserver interface {
	ObserveSave(at time.Time, elapsed time.Duration, err error)
}

// Uploader copies a saved snapshot file off host.
type Uploader interface {
	Upload(ctx context.Context, path string) error
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithSaveRules sets the source of autosave rules. It is consulted on every
// check, so CONFIG SET save takes effect without a restart.
func WithSaveRules(rules func() string) ManagerOption {
	return func(m *Manager) {
		m.rules = rules
	}
}

// WithObserver reports each save to o.
func WithObserver(o SaveObserver) ManagerOption {
	return func(m *Manager) {
		m.observer = o
	}
}

// WithUploader uploads the snapshot after each successful save. Only
// persisters implementing Locator produce a file to upload.
func WithUploader(u Uploader) ManagerOption {
	return func(m *Manager) {
		m.uploader = u
	}
}

// WithCheckInterval overrides DefaultCheckInterval.
func WithCheckInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.checkInterval = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// Manager saves and loads the key space through a Persister.
type Manager struct {
	store     *memory.Store
	persister Persister

	rules         func() string
	observer      SaveObserver
	uploader      Uploader
	checkInterval time.Duration
	logger        *slog.Logger

	saveMu    sync.Mutex
	lastSave  atomic.Int64 // Unix nanoseconds, 0 before the first save
	lastDirty atomic.Uint64
	// lastAttempt anchors rule intervals. Failed saves count.
	lastAttempt atomic.Int64

	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewManager creates a Manager for store.
func NewManager(store *memory.Store, persister Persister, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:         store,
		persister:     persister,
		checkInterval: DefaultCheckInterval,
		logger:        slog.Default(),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.lastDirty.Store(store.Dirty())
	m.lastAttempt.Store(store.Now().UnixNano())
	return m
}

// Load replaces the key space with the persisted snapshot and returns the
// number of keys loaded.
func (m *Manager) Load(ctx context.Context) (int, error) {
	entries, err := m.persister.Load(ctx)
	if err != nil {
		return 0, err
	}
	n := m.store.Restore(entries)
	m.lastDirty.Store(m.store.Dirty())
	m.logger.Info("key space loaded", "keys", n)
	return n, nil
}

// Save writes a snapshot of the key space. Concurrent calls are serialized.
func (m *Manager) Save(ctx context.Context) error {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	start := m.store.Now()
	m.lastAttempt.Store(start.UnixNano())

	dirty := m.store.Dirty()
	entries := m.store.Snapshot()
	err := m.persister.Save(ctx, entries)

	elapsed := m.store.Now().Sub(start)
	if m.observer != nil {
		m.observer.ObserveSave(start, elapsed, err)
	}
	if err != nil {
		m.logger.Error("save failed", "error", err)
		return err
	}

	m.lastSave.Store(start.UnixNano())
	m.lastDirty.Store(dirty)
	m.logger.Info("key space saved", "keys", len(entries), "elapsed", elapsed)

	m.upload(ctx)
	return nil
}

func (m *Manager) upload(ctx context.Context) {
	if m.uploader == nil {
		return
	}
	loc, ok := m.persister.(Locator)
	if !ok {
		return
	}
	if err := m.uploader.Upload(ctx, loc.Path()); err != nil {
		m.logger.Warn("snapshot backup failed", "path", loc.Path(), "error", err)
	}
}

// LastSave returns the time of the last successful save, or the zero time.
func (m *Manager) LastSave() time.Time {
	ns := m.lastSave.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Changes returns the number of writes since the last save.
func (m *Manager) Changes() uint64 {
	return m.store.Dirty() - m.lastDirty.Load()
}

// Due reports whether any save rule is satisfied.
func (m *Manager) Due() bool {
	if m.rules == nil {
		return false
	}
	rules, err := ParseSaveRules(m.rules())
	if err != nil {
		m.logger.Warn("ignoring save rules", "error", err)
		return false
	}

	changes := m.Changes()
	since := m.store.Now().Sub(time.Unix(0, m.lastAttempt.Load()))
	for _, r := range rules {
		if r.Changes > 0 && changes >= r.Changes && since >= r.Interval {
			return true
		}
	}
	return false
}

// Start launches the autosave loop.
func (m *Manager) Start() {
	if m.started.Swap(true) {
		return
	}
	go m.loop()
}

func (m *Manager) loop() {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if m.Due() {
				m.logger.Info("autosave triggered", "changes", m.Changes())
				_ = m.Save(context.Background())
			}
		case <-m.stopCh:
			return
		}
	}
}

// Close stops the autosave loop and closes the persister. It does not save;
// callers that want a final snapshot call Save first.
func (m *Manager) Close() error {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		if m.started.Load() {
			<-m.doneCh
		}
	})
	return m.persister.Close()
}
