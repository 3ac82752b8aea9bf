package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Profiles == nil {
		t.Error("Profiles should be initialized")
	}
	if _, ok := cfg.Profile(""); ok {
		t.Error("empty config should have no default profile")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	want := filepath.Join(home, ".respkv", "cli.yaml")
	if got := DefaultConfigPath(); got != want {
		t.Errorf("DefaultConfigPath() = %q, want %q", got, want)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Profiles) != 0 {
		t.Errorf("Profiles = %v, want empty", cfg.Profiles)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cli.yaml")

	cfg := Default()
	cfg.DefaultProfile = "prod"
	cfg.Output = "json"
	cfg.Profiles["prod"] = Profile{Server: "db.internal:6380", Password: "pw", TLS: true, CACert: "/etc/ca.pem"}
	cfg.Profiles["local"] = Profile{Server: "unix:/tmp/respkv.sock"}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("mode = %o, want 600", perm)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Output != "json" {
		t.Errorf("Output = %q", loaded.Output)
	}

	p, ok := loaded.Profile("")
	if !ok {
		t.Fatal("default profile not found")
	}
	if p != cfg.Profiles["prod"] {
		t.Errorf("prod = %+v, want %+v", p, cfg.Profiles["prod"])
	}
	if p, ok := loaded.Profile("local"); !ok || p.Server != "unix:/tmp/respkv.sock" {
		t.Errorf("local = %+v, %v", p, ok)
	}
	if _, ok := loaded.Profile("nope"); ok {
		t.Error("unknown profile reported as found")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	os.WriteFile(path, []byte("default_profile: a\nprofiles:\n  a:\n    server: a:1\n  b:\n    server: b:2\n"), 0600)
	t.Setenv("RESPKV_CLI_DEFAULT_PROFILE", "b")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	p, ok := cfg.Profile("")
	if !ok || p.Server != "b:2" {
		t.Errorf("Profile(\"\") = %+v, %v, want server b:2", p, ok)
	}
}
