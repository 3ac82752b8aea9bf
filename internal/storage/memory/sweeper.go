package memory

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Sweeper defaults.
const (
	DefaultSweepInterval = 100 * time.Millisecond
	DefaultSweepLimit    = 20
)

// SweeperConfig configures a Sweeper.
type SweeperConfig struct {
	// Interval between sweep cycles.
	Interval time.Duration

	// Limit is the number of entries examined per shard visit. A cycle keeps
	// visiting the same shard while more than a quarter of the examined
	// entries were expired, and then moves on.
	Limit int

	// Logger is the structured logger.
	Logger *slog.Logger
}

// Sweeper evicts expired keys in the background. Lazy expiry already hides
// expired keys from clients; the sweeper only reclaims memory held by keys
// nobody touches again.
type Sweeper struct {
	store  *Store
	cfg    SweeperConfig
	logger *slog.Logger

	cursor int

	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewSweeper creates a sweeper for store. Call Start to run it.
func NewSweeper(store *Store, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSweepInterval
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultSweepLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Sweeper{
		store:  store,
		cfg:    cfg,
		logger: cfg.Logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the background loop.
func (w *Sweeper) Start() {
	if w.started.Swap(true) {
		return
	}
	go w.loop()
}

func (w *Sweeper) loop() {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := w.Cycle(); n > 0 {
				w.logger.Debug("expired keys swept", "count", n)
			}

		case <-w.stopCh:
			return
		}
	}
}

// Cycle runs one sweep pass over every shard and returns the number of keys
// evicted. It is safe to call concurrently with foreground operations but
// not with another Cycle.
func (w *Sweeper) Cycle() int {
	shards := w.store.ShardCount()
	total := 0
	for i := 0; i < shards; i++ {
		idx := w.cursor
		w.cursor = (w.cursor + 1) % shards

		for {
			visited, removed := w.store.SweepShard(idx, w.cfg.Limit)
			total += removed
			// Stay on a shard that is dense with expired keys.
			if visited < w.cfg.Limit || removed*4 <= visited {
				break
			}
		}
	}
	return total
}

// Stop halts the background loop and waits for it to exit. It is safe to
// call more than once.
func (w *Sweeper) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	if w.started.Load() {
		<-w.doneCh
	}
}
