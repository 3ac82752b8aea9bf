package confloader

import (
	"fmt"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "RESPKV_"

// envSectionSep separates nesting levels in variable names, so that
// RESPKV_SERVER__REDIS__MAX_CLIENTS maps to server.redis.max_clients.
const envSectionSep = "__"

// Loader merges configuration layers, lowest priority first: the YAML
// file, a dotenv file exported into the environment, prefixed environment
// variables, then overrides recorded with LoadMap.
type Loader struct {
	envPrefix string
	filePath  string
	envFile   string

	mu        sync.RWMutex
	k         *koanf.Koanf
	overrides map[string]any
}

// Option is a function that configures the Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the YAML file. A configured file must exist.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// WithEnvFile loads variables from a dotenv file before reading the
// environment. Variables already set in the process take precedence.
func WithEnvFile(path string) Option {
	return func(l *Loader) {
		l.envFile = path
	}
}

// NewLoader creates a configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		envPrefix: DefaultEnvPrefix,
		k:         koanf.New("."),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type layer struct {
	name string
	load func(k *koanf.Koanf) error
}

func (l *Loader) layers() []layer {
	var out []layer
	if l.filePath != "" {
		out = append(out, layer{"file " + l.filePath, func(k *koanf.Koanf) error {
			return k.Load(file.Provider(l.filePath), yaml.Parser())
		}})
	}
	if l.envFile != "" {
		out = append(out, layer{"env file " + l.envFile, func(*koanf.Koanf) error {
			return godotenv.Load(l.envFile)
		}})
	}
	out = append(out, layer{"environment", func(k *koanf.Koanf) error {
		return k.Load(env.Provider(l.envPrefix, ".", func(s string) string {
			return EnvKey(l.envPrefix, s)
		}), nil)
	}})
	if len(l.overrides) > 0 {
		overrides := mapProvider(l.overrides)
		out = append(out, layer{"overrides", func(k *koanf.Koanf) error {
			return k.Load(overrides, nil)
		}})
	}
	return out
}

// Load reads every layer afresh and unmarshals the result into target.
// Fields of target that no layer mentions keep their current values. On
// error the previously loaded values stay in effect.
func (l *Loader) Load(target any) error {
	l.mu.RLock()
	layers := l.layers()
	l.mu.RUnlock()

	k := koanf.New(".")
	for _, ly := range layers {
		if err := ly.load(k); err != nil {
			return fmt.Errorf("load %s: %w", ly.name, err)
		}
	}
	if err := k.Unmarshal("", target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	l.mu.Lock()
	l.k = k
	l.mu.Unlock()
	return nil
}

// Reload is Load, named for call sites reacting to a file change.
func (l *Loader) Reload(target any) error {
	return l.Load(target)
}

// LoadMap records dotted-key overrides, typically from flags. They apply
// on top of every other layer from the next Load on.
func (l *Loader) LoadMap(data map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.overrides == nil {
		l.overrides = make(map[string]any, len(data))
	}
	for key, v := range data {
		if key == "" {
			return fmt.Errorf("load map: empty key")
		}
		l.overrides[key] = v
	}
	return nil
}

// EnvKey converts an environment variable name to a configuration key.
func EnvKey(prefix, name string) string {
	s := strings.ToLower(strings.TrimPrefix(name, prefix))
	return strings.ReplaceAll(s, envSectionSep, ".")
}

// FilePath returns the configured YAML file, if any.
func (l *Loader) FilePath() string {
	return l.filePath
}

// Get returns the merged value at a dotted key from the last successful
// Load, or nil.
func (l *Loader) Get(key string) any {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.k.Get(key)
}
