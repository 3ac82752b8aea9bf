package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/yndnr/respkv-go/internal/telemetry/logger"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if !logger.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Log.Level)
	}
	return nil
}

func verifyServer(cfg *ServerSection) error {
	r := &cfg.Redis
	if r.Addr == "" && r.TLSAddr == "" && r.UnixSocket == "" {
		return errors.New("server.redis: at least one of addr, tls_addr, unix_socket is required")
	}
	for name, addr := range map[string]string{
		"server.redis.addr":     r.Addr,
		"server.redis.tls_addr": r.TLSAddr,
	} {
		if addr == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if r.TLSAddr != "" && (r.TLSCertFile == "" || r.TLSKeyFile == "") {
		return errors.New("server.redis.tls_addr requires tls_cert_file and tls_key_file")
	}
	if r.MaxClients < 1 {
		return errors.New("server.redis.max_clients must be at least 1")
	}
	if r.RateLimit < 0 || r.RateBurst < 0 {
		return errors.New("server.redis.rate_limit and rate_burst must not be negative")
	}
	if r.RateLimit > 0 && r.RateBurst < 1 {
		return errors.New("server.redis.rate_burst must be at least 1 when rate_limit is set")
	}
	if r.MaxBulkLen < 1 {
		return errors.New("server.redis.max_bulk_len must be positive")
	}

	if cfg.HTTP.Enabled {
		if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
			return fmt.Errorf("server.http.addr: %w", err)
		}
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	switch cfg.Engine {
	case EngineRDB, EngineBadger:
	case EngineNone:
		return nil
	default:
		return fmt.Errorf("storage.engine %q is not one of rdb, badger, none", cfg.Engine)
	}

	if cfg.Dir == "" {
		return errors.New("storage.dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
		return errors.New("cannot create data directory: " + err.Error())
	}
	if cfg.DBFilename == "" || strings.ContainsRune(cfg.DBFilename, os.PathSeparator) {
		return errors.New("storage.dbfilename must be a plain file name")
	}
	if cfg.SaveInterval < 0 || cfg.SweepInterval < 0 {
		return errors.New("storage intervals must not be negative")
	}
	if cfg.SweepLimit < 1 {
		return errors.New("storage.sweep_limit must be at least 1")
	}
	if (cfg.Backup.GCSBucket == "") != (cfg.Backup.GCSObject == "") {
		return errors.New("storage.backup: gcs_bucket and gcs_object must be set together")
	}
	return nil
}
