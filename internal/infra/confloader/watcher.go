package confloader

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must stay quiet before callbacks run.
// Editors and config management tools often write a file in several steps.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reports changes to configuration files. Bursts of events for one
// file are coalesced into a single callback run.
type Watcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	files     map[string]struct{}
	pending   map[string]*time.Timer
	callbacks []func(string)

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger for the watcher.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithDebounce overrides DefaultDebounce. Zero runs callbacks on every
// event.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher creates a configuration file watcher.
func NewWatcher(opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fs:       fw,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		files:    make(map[string]struct{}),
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch starts reporting changes to path. The parent directory is watched
// so files replaced by rename are noticed too.
func (w *Watcher) Watch(path string) error {
	dir := filepath.Dir(path)
	if err := w.fs.Add(dir); err != nil {
		w.logger.Error("failed to watch directory", "path", dir, "error", err)
		return err
	}

	w.mu.Lock()
	w.files[filepath.Clean(path)] = struct{}{}
	w.mu.Unlock()

	w.logger.Debug("watching configuration file", "path", path)
	return nil
}

// OnChange registers a callback receiving the path of the changed file.
// Callbacks run on a timer goroutine, one file at a time.
func (w *Watcher) OnChange(callback func(string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start processes events until Stop is called.
func (w *Watcher) Start() {
	w.logger.Info("configuration watcher started")

	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			name := filepath.Clean(event.Name)
			if !w.watched(name) {
				continue
			}
			w.logger.Debug("configuration file changed", "file", name, "op", event.Op.String())
			w.schedule(name)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("configuration watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

// StartAsync runs Start in a goroutine.
func (w *Watcher) StartAsync() {
	go w.Start()
}

// Stop stops the watcher and drops pending notifications. It is safe to
// call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)

		w.mu.Lock()
		for name, t := range w.pending {
			t.Stop()
			delete(w.pending, name)
		}
		w.mu.Unlock()

		if err = w.fs.Close(); err != nil {
			w.logger.Error("failed to close watcher", "error", err)
			return
		}
		w.logger.Info("configuration watcher stopped")
	})
	return err
}

func (w *Watcher) watched(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.files[name]
	return ok
}

// schedule (re)arms the per-file timer.
func (w *Watcher) schedule(name string) {
	if w.debounce <= 0 {
		w.fire(name)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[name]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[name] = time.AfterFunc(w.debounce, func() { w.fire(name) })
}

func (w *Watcher) fire(name string) {
	select {
	case <-w.done:
		return
	default:
	}

	w.mu.Lock()
	delete(w.pending, name)
	callbacks := append([](func(string))(nil), w.callbacks...)
	w.mu.Unlock()

	for _, cb := range callbacks {
		cb(name)
	}
}
