package config

import "time"

// ServerConfig is the root configuration for respkv-server.
type ServerConfig struct {
	Server   ServerSection   `koanf:"server"`
	Storage  StorageSection  `koanf:"storage"`
	Security SecuritySection `koanf:"security"`
	Log      LogSection      `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	Redis RedisConfig `koanf:"redis"`
	HTTP  HTTPConfig  `koanf:"http"`
}

// RedisConfig configures the RESP listeners and per-connection limits.
type RedisConfig struct {
	// Addr is the plain TCP listen address. Empty disables it.
	Addr string `koanf:"addr"`

	// TLSAddr enables a TLS listener with the given certificate pair.
	TLSAddr     string `koanf:"tls_addr"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`

	// TLSCACertFile, when set, requires client certificates signed by it.
	TLSCACertFile string `koanf:"tls_ca_cert_file"`

	// UnixSocket is a filesystem path for a unix domain socket listener.
	UnixSocket string `koanf:"unix_socket"`

	// Zero timeouts disable the corresponding deadline.
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`

	MaxClients int `koanf:"max_clients"`

	// RateLimit is the number of commands per second accepted from one IP.
	// Zero disables the limiter.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`

	// AllowInline accepts space separated commands typed without RESP
	// framing (telnet style).
	AllowInline bool  `koanf:"allow_inline"`
	MaxBulkLen  int64 `koanf:"max_bulk_len"`
}

// HTTPConfig configures the HTTP server (health, metrics, WebSocket).
type HTTPConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Addr      string `koanf:"addr"`
	WebSocket bool   `koanf:"websocket"`
}

// StorageSection configures persistence.
type StorageSection struct {
	// Engine selects the persister: rdb, badger or none.
	Engine     string `koanf:"engine"`
	Dir        string `koanf:"dir"`
	DBFilename string `koanf:"dbfilename"`

	// SaveInterval seeds the save parameter as "<seconds> 1". Zero disables
	// autosave.
	SaveInterval   time.Duration `koanf:"save_interval"`
	SaveOnShutdown bool          `koanf:"save_on_shutdown"`

	SweepInterval time.Duration `koanf:"sweep_interval"`
	SweepLimit    int           `koanf:"sweep_limit"`

	// EncryptionKey, when set, seals RDB snapshots at rest.
	EncryptionKey string `koanf:"encryption_key"`

	Backup BackupConfig `koanf:"backup"`
}

// BackupConfig configures off-host copies of each saved snapshot.
type BackupConfig struct {
	GCSBucket string `koanf:"gcs_bucket"`
	GCSObject string `koanf:"gcs_object"`
}

// SecuritySection configures client authentication.
type SecuritySection struct {
	RequirePass string `koanf:"requirepass"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
