package command

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/yndnr/respkv-go/internal/core/domain"
	"github.com/yndnr/respkv-go/internal/protocol/resp"
)

// Settings exposes runtime configuration to CONFIG and AUTH.
type Settings interface {
	// ConfigGet returns name/value pairs of parameters matching pattern.
	ConfigGet(pattern string) []string
	// ConfigSet changes a parameter.
	ConfigSet(name, value string) error
	// RequirePass returns the connection password, or "" when disabled.
	RequirePass() string
}

// Saver persists the key space for SAVE, BGSAVE and LASTSAVE.
type Saver interface {
	Save(ctx context.Context) error
	LastSave() time.Time
}

// Observer receives per-command execution results.
type Observer interface {
	ObserveCommand(name string, elapsed time.Duration, failed bool)
}

// Engine dispatches requests to registered commands.
type Engine struct {
	registry *Registry
	store    KeySpace
	settings Settings
	saver    Saver
	observer Observer
	logger   *slog.Logger

	bgSaving atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithSettings enables CONFIG and password authentication.
func WithSettings(s Settings) Option {
	return func(e *Engine) {
		e.settings = s
	}
}

// WithSaver enables SAVE, BGSAVE and LASTSAVE.
func WithSaver(s Saver) Option {
	return func(e *Engine) {
		e.saver = s
	}
}

// WithObserver installs a command observer, typically metrics.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates an engine over store with the built-in commands
// registered.
func NewEngine(store KeySpace, opts ...Option) *Engine {
	e := &Engine{
		registry: NewRegistry(),
		store:    store,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.registerBuiltins()
	return e
}

// Registry returns the command registry, for adding commands.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Execute runs one request and returns its reply. It never fails: every
// problem is reported as an error frame.
func (e *Engine) Execute(ctx context.Context, sess *Session, req resp.Frame) resp.Frame {
	if sess == nil {
		sess = NewSession("", "")
	}
	sess.commands++

	args, err := requestArgs(req)
	if err != nil {
		return ErrorReply(err)
	}

	cmd, ok := e.registry.Lookup(string(args[0]))
	if !ok {
		e.observe("unknown", 0, true)
		return ErrorReply(domain.UnknownCommand(string(args[0]), args[1:]))
	}

	if !cmd.checkArity(len(args)) {
		e.observe(cmd.Name, 0, true)
		return ErrorReply(domain.WrongArity(cmd.Name))
	}

	if !cmd.Flags.Has(FlagNoAuth) && !e.authorized(sess) {
		e.observe(cmd.Name, 0, true)
		return ErrorReply(domain.ErrNoAuth)
	}

	r := &Request{
		Ctx:     ctx,
		Name:    cmd.Name,
		Args:    args[1:],
		Store:   e.store,
		Session: sess,
	}

	start := time.Now()
	reply, err := cmd.Handler(r)
	elapsed := time.Since(start)

	e.observe(cmd.Name, elapsed, err != nil)
	if err != nil {
		if _, ok := domain.AsReplyError(err); !ok {
			e.logger.WarnContext(ctx, "command failed", "command", cmd.Name, "error", err)
		}
		return ErrorReply(err)
	}
	return reply
}

func (e *Engine) authorized(sess *Session) bool {
	if e.settings == nil || e.settings.RequirePass() == "" {
		return true
	}
	return sess.authenticated
}

func (e *Engine) observe(name string, elapsed time.Duration, failed bool) {
	if e.observer != nil {
		e.observer.ObserveCommand(strings.ToLower(name), elapsed, failed)
	}
}

// requestArgs validates a request frame and returns its elements.
func requestArgs(req resp.Frame) ([][]byte, error) {
	if req.Kind != resp.KindArray || req.Nil {
		return nil, domain.ErrInvalidRequest
	}
	if len(req.Elems) == 0 {
		return nil, domain.ErrEmptyRequest
	}

	args := make([][]byte, len(req.Elems))
	for i, el := range req.Elems {
		if el.Kind != resp.KindBulkString || el.Nil {
			return nil, domain.ErrInvalidRequest
		}
		args[i] = el.Bulk
	}
	return args, nil
}

// ErrorReply renders err as an error frame. ReplyErrors are sent verbatim;
// any other error is reported with the generic "ERR" prefix.
func ErrorReply(err error) resp.Frame {
	if re, ok := domain.AsReplyError(err); ok {
		return resp.Error(re.Error())
	}
	return resp.Error("ERR " + err.Error())
}
