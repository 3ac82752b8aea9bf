package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/yndnr/respkv-go/internal/core/domain"
	"github.com/yndnr/respkv-go/pkg/glob"
)

// Runtime parameter names.
const (
	ParamDir         = "dir"
	ParamDBFilename  = "dbfilename"
	ParamRequirePass = "requirepass"
	ParamMaxClients  = "maxclients"
	ParamSave        = "save"
	ParamDatabases   = "databases"
)

var errImmutable = errors.New("can't set immutable config")

type param struct {
	validate func(string) error
	mutable  bool
}

var params = map[string]param{
	ParamDir:         {validate: validateDir, mutable: true},
	ParamDBFilename:  {validate: validateDBFilename, mutable: true},
	ParamRequirePass: {mutable: true},
	ParamMaxClients:  {validate: validatePositive, mutable: true},
	ParamSave:        {validate: validateSave, mutable: true},
	ParamDatabases:   {},
}

// Runtime holds the parameters reachable through CONFIG GET and CONFIG SET.
// It is safe for concurrent use.
type Runtime struct {
	mu        sync.RWMutex
	values    map[string]string
	listeners []func(name, value string)
}

// NewRuntime seeds runtime parameters from cfg.
func NewRuntime(cfg *ServerConfig) *Runtime {
	save := ""
	if cfg.Storage.SaveInterval > 0 {
		save = fmt.Sprintf("%d 1", int64(cfg.Storage.SaveInterval/time.Second))
	}
	return &Runtime{
		values: map[string]string{
			ParamDir:         cfg.Storage.Dir,
			ParamDBFilename:  cfg.Storage.DBFilename,
			ParamRequirePass: cfg.Security.RequirePass,
			ParamMaxClients:  strconv.Itoa(cfg.Server.Redis.MaxClients),
			ParamSave:        save,
			ParamDatabases:   "1",
		},
	}
}

// ConfigGet returns name/value pairs for parameters matching pattern,
// sorted by name.
func (r *Runtime) ConfigGet(pattern string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := lo.Filter(lo.Keys(r.values), func(name string, _ int) bool {
		return glob.MatchFold(pattern, name)
	})
	slices.Sort(names)

	out := make([]string, 0, 2*len(names))
	for _, name := range names {
		out = append(out, name, r.values[name])
	}
	return out
}

// ConfigSet validates and stores value, then notifies listeners.
func (r *Runtime) ConfigSet(name, value string) error {
	name = strings.ToLower(name)
	p, ok := params[name]
	if !ok {
		return domain.Errorf("Unknown option or number of arguments for CONFIG SET - '%s'", name)
	}
	if !p.mutable {
		return errImmutable
	}
	if p.validate != nil {
		if err := p.validate(value); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.values[name] = value
	listeners := slices.Clone(r.listeners)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(name, value)
	}
	return nil
}

// OnChange registers fn to run after each successful ConfigSet.
func (r *Runtime) OnChange(fn func(name, value string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *Runtime) get(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.values[name]
}

// RequirePass returns the connection password, or "" when disabled.
func (r *Runtime) RequirePass() string { return r.get(ParamRequirePass) }

// Dir returns the snapshot directory.
func (r *Runtime) Dir() string { return r.get(ParamDir) }

// DBFilename returns the snapshot file name.
func (r *Runtime) DBFilename() string { return r.get(ParamDBFilename) }

// MaxClients returns the connection limit.
func (r *Runtime) MaxClients() int {
	n, _ := strconv.Atoi(r.get(ParamMaxClients))
	return n
}

// Save returns the autosave rules in "<seconds> <changes> ..." form.
func (r *Runtime) Save() string { return r.get(ParamSave) }

func validateDir(v string) error {
	fi, err := os.Stat(v)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", v)
	}
	return nil
}

func validateDBFilename(v string) error {
	if v == "" || strings.ContainsRune(v, os.PathSeparator) {
		return errors.New("dbfilename can't be a path, just a filename")
	}
	return nil
}

func validatePositive(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return errors.New("argument couldn't be parsed into an integer")
	}
	return nil
}

func validateSave(v string) error {
	fields := strings.Fields(v)
	if len(fields)%2 != 0 {
		return errors.New("Invalid save parameters")
	}
	for _, f := range fields {
		if n, err := strconv.ParseInt(f, 10, 64); err != nil || n < 0 {
			return errors.New("Invalid save parameters")
		}
	}
	return nil
}
