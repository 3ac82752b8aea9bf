package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/yaml"

	"github.com/yndnr/respkv-go/internal/infra/confloader"
)

// EnvPrefix is the prefix of environment variables read into CLIConfig,
// e.g. RESPKV_CLI_DEFAULT_PROFILE.
const EnvPrefix = "RESPKV_CLI_"

// DefaultConfigPath returns the default CLI config file path.
func DefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".respkv", "cli.yaml")
}

// Load loads CLI configuration from path and the environment. A missing
// file yields the defaults.
func Load(path string) (*CLIConfig, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	var opts []confloader.Option
	opts = append(opts, confloader.WithEnvPrefix(EnvPrefix))
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			opts = append(opts, confloader.WithConfigFile(path))
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := Default()
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]Profile)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML with owner-only permissions.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	if path == "" {
		return errors.New("no config path: home directory unknown")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := yaml.Parser().Marshal(toMap(cfg))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func toMap(cfg *CLIConfig) map[string]any {
	profiles := make(map[string]any, len(cfg.Profiles))
	for name, p := range cfg.Profiles {
		profiles[name] = map[string]any{
			"server":   p.Server,
			"user":     p.User,
			"password": p.Password,
			"tls":      p.TLS,
			"cacert":   p.CACert,
			"insecure": p.Insecure,
		}
	}
	return map[string]any{
		"default_profile": cfg.DefaultProfile,
		"output":          cfg.Output,
		"profiles":        profiles,
	}
}
