package tlsroots

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the bursts of events editors and cert
// managers produce when replacing a file.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches a certificate pair and reloads it on change.
type Watcher struct {
	certFile string
	keyFile  string
	logger   *slog.Logger
	debounce time.Duration

	mu   sync.RWMutex
	cert *tls.Certificate
	leaf *x509.Certificate
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets the logger for the watcher.
func WithLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithDebounce sets the debounce duration.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher loads the pair once and returns a Watcher serving it.
func NewWatcher(certFile, keyFile string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		certFile: certFile,
		keyFile:  keyFile,
		logger:   slog.Default(),
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.Reload(); err != nil {
		return nil, fmt.Errorf("tlsroots: initial load: %w", err)
	}
	return w, nil
}

// Run watches the directories holding the pair until ctx is canceled.
// Directories are watched rather than files so atomic renames are seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tlsroots: create watcher: %w", err)
	}
	defer fw.Close()

	certDir, keyDir := filepath.Dir(w.certFile), filepath.Dir(w.keyFile)
	if err := fw.Add(certDir); err != nil {
		return fmt.Errorf("tlsroots: watch %s: %w", certDir, err)
	}
	if keyDir != certDir {
		if err := fw.Add(keyDir); err != nil {
			return fmt.Errorf("tlsroots: watch %s: %w", keyDir, err)
		}
	}

	w.logger.Info("certificate watcher started", "cert_file", w.certFile, "key_file", w.keyFile)

	names := map[string]bool{
		filepath.Clean(w.certFile): true,
		filepath.Clean(w.keyFile):  true,
	}

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !names[filepath.Clean(event.Name)] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("certificate file changed", "file", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerCh = timer.C

		case <-timerCh:
			timerCh = nil
			if err := w.Reload(); err != nil {
				w.logger.Error("certificate reload failed", "error", err, "cert_file", w.certFile)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("certificate watcher error", "error", err)
		}
	}
}

// Reload reads the pair from disk. On failure the previous certificate
// stays in use.
func (w *Watcher) Reload() error {
	cert, err := tls.LoadX509KeyPair(w.certFile, w.keyFile)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("parse leaf: %w", err)
	}

	w.mu.Lock()
	w.cert = &cert
	w.leaf = leaf
	w.mu.Unlock()

	w.logger.Info("certificate loaded", "cert_file", w.certFile, "not_after", leaf.NotAfter)
	return nil
}

// NotAfter returns the expiry of the certificate in use.
func (w *Watcher) NotAfter() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.leaf.NotAfter
}

// GetCertificate implements tls.Config.GetCertificate.
func (w *Watcher) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cert, nil
}
