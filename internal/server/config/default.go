package config

import "time"

// Storage engines.
const (
	EngineRDB    = "rdb"
	EngineBadger = "badger"
	EngineNone   = "none"
)

// Default configuration values.
const (
	DefaultRedisAddr    = "127.0.0.1:6379"
	DefaultHTTPAddr     = "127.0.0.1:8379"
	DefaultWriteTimeout = 10 * time.Second
	DefaultMaxClients   = 10000
	DefaultMaxBulkLen   = 512 << 20

	DefaultStorageEngine = EngineRDB
	DefaultDir           = "."
	DefaultDBFilename    = "dump.rdb"
	DefaultSweepInterval = 100 * time.Millisecond
	DefaultSweepLimit    = 20

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Redis: RedisConfig{
				Addr:         DefaultRedisAddr,
				WriteTimeout: DefaultWriteTimeout,
				MaxClients:   DefaultMaxClients,
				AllowInline:  true,
				MaxBulkLen:   DefaultMaxBulkLen,
			},
			HTTP: HTTPConfig{
				Addr: DefaultHTTPAddr,
			},
		},
		Storage: StorageSection{
			Engine:         DefaultStorageEngine,
			Dir:            DefaultDir,
			DBFilename:     DefaultDBFilename,
			SaveOnShutdown: true,
			SweepInterval:  DefaultSweepInterval,
			SweepLimit:     DefaultSweepLimit,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
