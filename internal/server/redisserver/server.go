package redisserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/respkv-go/internal/core/command"
	"github.com/yndnr/respkv-go/internal/protocol/resp"
)

// Config holds the Redis server configuration.
type Config struct {
	// Addr is the plaintext TCP address. Empty disables it.
	Addr string
	// TLSAddr is the TLS address. Empty disables it.
	TLSAddr string
	// TLSConfig is required when TLSAddr is set.
	TLSConfig *tls.Config
	// UnixSocket is a unix socket path. Empty disables it.
	UnixSocket string

	// ReadTimeout bounds reading the rest of a request once its first
	// byte arrived. Zero means no limit.
	ReadTimeout time.Duration
	// WriteTimeout bounds writing a reply. Zero means no limit.
	WriteTimeout time.Duration
	// IdleTimeout closes connections idle between requests. Zero means no
	// limit.
	IdleTimeout time.Duration

	// MaxClients returns the connection limit. It is consulted on every
	// accept so CONFIG SET maxclients applies to new connections.
	MaxClients func() int

	// RateLimit is the number of commands per second allowed per client IP.
	// Zero disables limiting.
	RateLimit float64
	RateBurst int

	// AllowInline accepts inline commands such as "PING\r\n".
	AllowInline bool
	// MaxBulkLen caps a single bulk string. Zero keeps the decoder default.
	MaxBulkLen int64
}

// ConnObserver receives connection events.
type ConnObserver interface {
	ConnOpened()
	ConnClosed()
	ConnRejected(reason string)
	ProtocolError()
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithObserver reports connection events to o.
func WithObserver(o ConnObserver) Option {
	return func(s *Server) {
		s.observer = o
	}
}

// Server represents the Redis protocol server.
type Server struct {
	cfg      Config
	engine   *command.Engine
	decoder  *resp.Decoder
	limiter  *ipLimiter
	observer ConnObserver
	logger   *slog.Logger

	mu        sync.Mutex
	listeners []net.Listener
	conns     map[io.Closer]struct{}

	running atomic.Bool
	closed  atomic.Bool
	wg      sync.WaitGroup
}

// New creates a new Redis protocol server.
func New(cfg Config, engine *command.Engine, opts ...Option) *Server {
	dec := resp.NewDecoder()
	dec.AllowInline = cfg.AllowInline
	if cfg.MaxBulkLen > 0 {
		dec.MaxBulkLen = cfg.MaxBulkLen
	}

	s := &Server{
		cfg:     cfg,
		engine:  engine,
		decoder: dec,
		limiter: newIPLimiter(cfg.RateLimit, cfg.RateBurst),
		logger:  slog.Default(),
		conns:   make(map[io.Closer]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds every configured listener and serves them in the background.
// If any bind fails, listeners already bound are closed.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.Addr == "" && s.cfg.TLSAddr == "" && s.cfg.UnixSocket == "" {
		s.logger.Info("redis server disabled (no listener configured)")
		return nil
	}

	var bound []net.Listener
	fail := func(err error) error {
		for _, ln := range bound {
			_ = ln.Close()
		}
		return err
	}

	if s.cfg.Addr != "" {
		ln, err := net.Listen("tcp", s.cfg.Addr)
		if err != nil {
			return fail(fmt.Errorf("listen %s: %w", s.cfg.Addr, err))
		}
		bound = append(bound, ln)
	}

	if s.cfg.TLSAddr != "" {
		if s.cfg.TLSConfig == nil {
			return fail(errors.New("tls config is required for the TLS listener"))
		}
		ln, err := tls.Listen("tcp", s.cfg.TLSAddr, s.cfg.TLSConfig)
		if err != nil {
			return fail(fmt.Errorf("listen tls %s: %w", s.cfg.TLSAddr, err))
		}
		bound = append(bound, ln)
	}

	if s.cfg.UnixSocket != "" {
		if err := os.Remove(s.cfg.UnixSocket); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fail(fmt.Errorf("remove stale socket: %w", err))
		}
		ln, err := net.Listen("unix", s.cfg.UnixSocket)
		if err != nil {
			return fail(fmt.Errorf("listen unix %s: %w", s.cfg.UnixSocket, err))
		}
		bound = append(bound, ln)
	}

	s.mu.Lock()
	s.listeners = bound
	s.mu.Unlock()
	s.running.Store(true)

	for _, ln := range bound {
		s.logger.Info("redis server listening", "network", ln.Addr().Network(), "address", ln.Addr().String())
		s.wg.Add(1)
		go func(ln net.Listener) {
			defer s.wg.Done()
			if err := s.acceptLoop(ctx, ln); err != nil && s.running.Load() {
				s.logger.Error("redis accept loop failed", "address", ln.Addr().String(), "error", err)
			}
		}(ln)
	}
	return nil
}

// Addrs returns the bound listener addresses.
func (s *Server) Addrs() []net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	addrs := make([]net.Addr, len(s.listeners))
	for i, ln := range s.listeners {
		addrs[i] = ln.Addr()
	}
	return addrs
}

// ActiveConns returns the number of open client connections.
func (s *Server) ActiveConns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Shutdown closes the listeners and every open connection, then waits for
// connection goroutines to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)
	s.closed.Store(true)

	var firstErr error

	s.mu.Lock()
	for _, ln := range s.listeners {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) && firstErr == nil {
			firstErr = err
		}
	}
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if s.cfg.UnixSocket != "" {
		_ = os.Remove(s.cfg.UnixSocket)
	}
	return firstErr
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				s.logger.Warn("accept timed out", "error", err)
				continue
			}
			return err
		}

		remote := c.RemoteAddr().String()
		if remote == "" || remote == "@" {
			remote = "unix:" + ln.Addr().String()
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.ServeStream(ctx, c, remote)
		}()
	}
}

// admit registers c, or rejects it when the server is at its connection
// limit or shutting down.
func (s *Server) admit(c io.Closer) (ok bool, reason string) {
	limit := 0
	if s.cfg.MaxClients != nil {
		limit = s.cfg.MaxClients()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return false, "shutdown"
	}
	if limit > 0 && len(s.conns) >= limit {
		return false, "max_clients"
	}
	s.conns[c] = struct{}{}
	return true, ""
}

func (s *Server) release(c io.Closer) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}
