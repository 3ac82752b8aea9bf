package command

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/yndnr/respkv-go/internal/protocol/resp"
	"github.com/yndnr/respkv-go/internal/storage/memory"
)

// KeySpace is the key space the engine executes against.
type KeySpace interface {
	Now() time.Time
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, expireAt time.Time)
	SetWithOptions(key string, value []byte, opts memory.SetOptions) bool
	Delete(key string) bool
	Exists(key string) bool
	Expire(key string, at time.Time) bool
	Persist(key string) bool
	TTL(key string) time.Duration
	Keys(pattern string) []string
	Len() int
	Flush() int
}

// Flag describes command properties.
type Flag uint32

const (
	// FlagWrite marks commands that modify the key space.
	FlagWrite Flag = 1 << iota
	// FlagReadOnly marks commands that only read the key space.
	FlagReadOnly
	// FlagAdmin marks server administration commands.
	FlagAdmin
	// FlagNoAuth marks commands allowed before authentication.
	FlagNoAuth
	// FlagFast marks O(1) commands.
	FlagFast
)

var flagNames = []struct {
	flag Flag
	name string
}{
	{FlagWrite, "write"},
	{FlagReadOnly, "readonly"},
	{FlagAdmin, "admin"},
	{FlagNoAuth, "no_auth"},
	{FlagFast, "fast"},
}

// Has reports whether all bits of other are set in f.
func (f Flag) Has(other Flag) bool {
	return f&other == other
}

// Names returns the flag names as reported by COMMAND.
func (f Flag) Names() []string {
	names := make([]string, 0, len(flagNames))
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			names = append(names, fn.name)
		}
	}
	return names
}

// Request is one command invocation.
type Request struct {
	Ctx     context.Context
	Name    string   // upper-cased verb
	Args    [][]byte // arguments after the verb
	Store   KeySpace
	Session *Session
}

// Arg returns argument i as a string.
func (r *Request) Arg(i int) string {
	return string(r.Args[i])
}

// HandlerFunc executes a command. A returned error is sent to the client as
// an error frame.
type HandlerFunc func(r *Request) (resp.Frame, error)

// Command describes a registered command.
//
// Arity follows the Redis convention and counts the verb itself: a positive
// value requires exactly that many elements, a negative value -N requires at
// least N.
type Command struct {
	Name     string
	Arity    int
	Flags    Flag
	FirstKey int
	LastKey  int
	Step     int
	Group    string
	Summary  string
	Handler  HandlerFunc
}

// checkArity reports whether n request elements (verb included) satisfy the
// command's arity.
func (c *Command) checkArity(n int) bool {
	if c.Arity >= 0 {
		return n == c.Arity
	}
	return n >= -c.Arity
}

// info renders the command as a COMMAND INFO entry.
func (c *Command) info() resp.Frame {
	flags := lo.Map(c.Flags.Names(), func(name string, _ int) resp.Frame {
		return resp.SimpleString(name)
	})
	return resp.Array(
		resp.BulkString(strings.ToLower(c.Name)),
		resp.Integer(int64(c.Arity)),
		resp.Array(flags...),
		resp.Integer(int64(c.FirstKey)),
		resp.Integer(int64(c.LastKey)),
		resp.Integer(int64(c.Step)),
	)
}

// docs renders the command as a COMMAND DOCS entry.
func (c *Command) docs() resp.Frame {
	return resp.Array(
		resp.BulkString("summary"), resp.BulkString(c.Summary),
		resp.BulkString("group"), resp.BulkString(c.Group),
	)
}

// Registry maps upper-cased verbs to commands.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]*Command
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]*Command)}
}

// Register adds a command. Names are case-insensitive and must be unique.
func (r *Registry) Register(cmd *Command) error {
	if cmd == nil || cmd.Name == "" || cmd.Handler == nil {
		return fmt.Errorf("command: invalid command definition")
	}
	if cmd.Arity == 0 {
		return fmt.Errorf("command: %s: arity must not be zero", cmd.Name)
	}

	name := strings.ToUpper(cmd.Name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.commands[name]; ok {
		return fmt.Errorf("command: %s already registered", name)
	}
	cmd.Name = name
	r.commands[name] = cmd
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(cmds ...*Command) {
	for _, cmd := range cmds {
		if err := r.Register(cmd); err != nil {
			panic(err)
		}
	}
}

// Lookup finds a command by name, ignoring case.
func (r *Registry) Lookup(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmd, ok := r.commands[strings.ToUpper(name)]
	return cmd, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := lo.Keys(r.commands)
	r.mu.RUnlock()

	slices.Sort(names)
	return names
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}
