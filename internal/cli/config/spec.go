package config

// CLIConfig is the configuration for respkv-cli.
type CLIConfig struct {
	// DefaultProfile is used when --profile is not given.
	DefaultProfile string `koanf:"default_profile"`

	// Output is the default output format.
	Output string `koanf:"output"`

	Profiles map[string]Profile `koanf:"profiles"`
}

// Profile stores saved connection details.
type Profile struct {
	Server   string `koanf:"server"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	TLS      bool   `koanf:"tls"`
	CACert   string `koanf:"cacert"`
	Insecure bool   `koanf:"insecure"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Profiles: make(map[string]Profile),
	}
}

// Profile returns the named profile, or the default profile when name is
// empty. ok is false when no such profile exists.
func (c *CLIConfig) Profile(name string) (p Profile, ok bool) {
	if name == "" {
		name = c.DefaultProfile
	}
	if name == "" {
		return Profile{}, false
	}
	p, ok = c.Profiles[name]
	return p, ok
}
