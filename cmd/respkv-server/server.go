package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/yndnr/respkv-go/internal/core/command"
	"github.com/yndnr/respkv-go/internal/infra/buildinfo"
	"github.com/yndnr/respkv-go/internal/infra/confloader"
	"github.com/yndnr/respkv-go/internal/infra/shutdown"
	"github.com/yndnr/respkv-go/internal/infra/tlsroots"
	"github.com/yndnr/respkv-go/internal/server/config"
	"github.com/yndnr/respkv-go/internal/server/httpserver"
	"github.com/yndnr/respkv-go/internal/server/redisserver"
	"github.com/yndnr/respkv-go/internal/storage"
	"github.com/yndnr/respkv-go/internal/storage/backup"
	"github.com/yndnr/respkv-go/internal/storage/memory"
	"github.com/yndnr/respkv-go/internal/storage/snapshot"
	"github.com/yndnr/respkv-go/internal/telemetry/logger"
	"github.com/yndnr/respkv-go/internal/telemetry/metric"
)

const shutdownTimeout = 30 * time.Second

type options struct {
	configFile string
	envFile    string
	overrides  map[string]any
}

func run(ctx context.Context, opts options) error {
	cfg, loader, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	slogger := log.Slog()

	info := buildinfo.Get()
	log.Info("starting respkv-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", opts.configFile,
		"settings", config.Sanitize(cfg))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sh := shutdown.NewHandler(shutdownTimeout, slogger)
	sh.OnShutdown("background", func(context.Context) error {
		cancel()
		return nil
	})

	store := memory.New()
	runtime := config.NewRuntime(cfg)
	logSettingChanges(runtime, slogger)
	metrics := metric.New()
	metrics.Registry().MustRegister(metric.NewCollector(store))

	// Persistence.
	manager, uploader, err := initPersistence(ctx, cfg, runtime, store, metrics, slogger)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	if uploader != nil {
		sh.OnShutdown("backup", func(context.Context) error { return uploader.Close() })
	}
	if manager != nil {
		sh.OnShutdown("persistence", func(ctx context.Context) error {
			var saveErr error
			if cfg.Storage.SaveOnShutdown {
				log.Info("saving key space before exit", "keys", store.Len())
				saveErr = manager.Save(ctx)
			}
			return errors.Join(saveErr, manager.Close())
		})

		n, err := manager.Load(ctx)
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
		log.Info("key space loaded", "keys", n, "engine", cfg.Storage.Engine)
	}

	// Command engine.
	engineOpts := []command.Option{
		command.WithSettings(runtime),
		command.WithObserver(metrics),
		command.WithLogger(slogger),
	}
	if manager != nil {
		engineOpts = append(engineOpts, command.WithSaver(manager))
	}
	engine := command.NewEngine(store, engineOpts...)

	// RESP listeners.
	rc := cfg.Server.Redis
	var tlsConfig *tls.Config
	if rc.TLSAddr != "" {
		certs, err := tlsroots.NewWatcher(rc.TLSCertFile, rc.TLSKeyFile, tlsroots.WithLogger(slogger))
		if err != nil {
			return err
		}
		if tlsConfig, err = tlsroots.ServerConfig(certs, rc.TLSCACertFile); err != nil {
			return err
		}
		go func() {
			if err := certs.Run(ctx); err != nil {
				log.Error("certificate watcher stopped", "error", err)
			}
		}()
	}

	redisSrv := redisserver.New(redisserver.Config{
		Addr:         rc.Addr,
		TLSAddr:      rc.TLSAddr,
		TLSConfig:    tlsConfig,
		UnixSocket:   rc.UnixSocket,
		ReadTimeout:  rc.ReadTimeout,
		WriteTimeout: rc.WriteTimeout,
		IdleTimeout:  rc.IdleTimeout,
		MaxClients:   runtime.MaxClients,
		RateLimit:    rc.RateLimit,
		RateBurst:    rc.RateBurst,
		AllowInline:  rc.AllowInline,
		MaxBulkLen:   rc.MaxBulkLen,
	}, engine, redisserver.WithLogger(slogger), redisserver.WithObserver(metrics))
	if err := redisSrv.Start(ctx); err != nil {
		return fmt.Errorf("start redis server: %w", err)
	}
	sh.OnShutdown("redis", redisSrv.Shutdown)
	for _, addr := range redisSrv.Addrs() {
		log.Info("RESP server listening", "network", addr.Network(), "addr", addr.String())
	}

	// HTTP: health, metrics, WebSocket.
	if cfg.Server.HTTP.Enabled {
		router := httpserver.RouterConfig{
			Version:     info.Version,
			Keys:        store.Len,
			Connections: redisSrv.ActiveConns,
			Metrics:     metrics.Handler(),
			Logger:      slogger,
		}
		if manager != nil {
			router.LastSave = manager.LastSave
		}
		if cfg.Server.HTTP.WebSocket {
			router.Stream = redisSrv
		}
		httpSrv := httpserver.New(cfg.Server.HTTP.Addr, httpserver.NewRouter(router), slogger)
		if err := httpSrv.Start(); err != nil {
			return fmt.Errorf("start http server: %w", err)
		}
		sh.OnShutdown("http", httpSrv.Shutdown)
		log.Info("HTTP server listening", "addr", httpSrv.Addr().String(), "websocket", cfg.Server.HTTP.WebSocket)
	}

	// Background work.
	sweeper := memory.NewSweeper(store, memory.SweeperConfig{
		Interval: cfg.Storage.SweepInterval,
		Limit:    cfg.Storage.SweepLimit,
		Logger:   slogger,
	})
	sweeper.Start()
	sh.OnShutdown("sweeper", func(context.Context) error {
		sweeper.Stop()
		return nil
	})
	if manager != nil {
		manager.Start()
	}

	if opts.configFile != "" {
		w, err := watchConfig(opts.configFile, loader, slogger)
		if err != nil {
			log.Warn("config hot reload disabled", "error", err)
		} else {
			sh.OnShutdown("config-watcher", func(context.Context) error { return w.Stop() })
		}
	}

	log.Info("server started, press Ctrl+C to stop")
	if err := sh.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from defaults, file, dotenv, environment
// and flag overrides, in increasing priority.
func loadConfig(opts options) (*config.ServerConfig, *confloader.Loader, error) {
	cfg := config.Default()

	var loaderOpts []confloader.Option
	if opts.configFile != "" {
		loaderOpts = append(loaderOpts, confloader.WithConfigFile(opts.configFile))
	}
	if opts.envFile != "" {
		loaderOpts = append(loaderOpts, confloader.WithEnvFile(opts.envFile))
	}
	loader := confloader.NewLoader(loaderOpts...)
	if len(opts.overrides) > 0 {
		if err := loader.LoadMap(opts.overrides); err != nil {
			return nil, nil, err
		}
	}

	if err := loader.Load(cfg); err != nil {
		return nil, nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, loader, nil
}

func initLogger(cfg *config.ServerConfig) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	slog.SetDefault(log.Slog())
	return log, nil
}

// initPersistence builds the persister selected by storage.engine and the
// Manager driving it. Both results are nil for engine "none".
func initPersistence(
	ctx context.Context,
	cfg *config.ServerConfig,
	runtime *config.Runtime,
	store *memory.Store,
	metrics *metric.Metrics,
	log *slog.Logger,
) (*storage.Manager, *backup.GCS, error) {
	sc := cfg.Storage

	var persister storage.Persister
	switch sc.Engine {
	case config.EngineNone:
		log.Warn("persistence disabled")
		return nil, nil, nil

	case config.EngineBadger:
		bp, err := storage.NewBadgerPersister(storage.BadgerConfig{
			Dir:    filepath.Join(sc.Dir, "badger"),
			Now:    store.Now,
			Logger: log,
		})
		if err != nil {
			return nil, nil, err
		}
		persister = bp.RegisterMetrics(metrics.Registry())

	default:
		var sealer *snapshot.Sealer
		if sc.EncryptionKey != "" {
			s, err := snapshot.NewSealer(sc.EncryptionKey)
			if err != nil {
				return nil, nil, err
			}
			sealer = s
		}
		fp, err := storage.NewFilePersister(storage.FileConfig{
			Dir:        runtime.Dir,
			DBFilename: runtime.DBFilename,
			Sealer:     sealer,
			Now:        store.Now,
			Logger:     log,
		})
		if err != nil {
			return nil, nil, err
		}
		persister = fp
	}

	managerOpts := []storage.ManagerOption{
		storage.WithSaveRules(runtime.Save),
		storage.WithObserver(metrics),
		storage.WithLogger(log),
	}

	var uploader *backup.GCS
	if sc.Backup.GCSBucket != "" {
		g, err := backup.NewGCS(ctx, sc.Backup.GCSBucket, sc.Backup.GCSObject)
		if err != nil {
			persister.Close()
			return nil, nil, fmt.Errorf("gcs backup: %w", err)
		}
		uploader = g
		managerOpts = append(managerOpts, storage.WithUploader(g))

		if loc, ok := persister.(storage.Locator); ok {
			if err := restoreMissing(ctx, g, loc.Path(), log); err != nil {
				g.Close()
				persister.Close()
				return nil, nil, err
			}
		}
	}

	return storage.NewManager(store, persister, managerOpts...), uploader, nil
}

// restoreMissing fetches the backup when no local snapshot exists.
func restoreMissing(ctx context.Context, g *backup.GCS, path string, log *slog.Logger) error {
	if _, err := os.Stat(path); err == nil || !errors.Is(err, os.ErrNotExist) {
		return nil
	}
	found, err := g.Download(ctx, path)
	if err != nil {
		return fmt.Errorf("restore from backup: %w", err)
	}
	if found {
		log.Info("snapshot restored from backup", "path", path)
	}
	return nil
}

// watchConfig reloads the file on change and applies log.level live.
// Other settings need a restart or CONFIG SET.
// logSettingChanges records every CONFIG SET with its new value. The
// connection password is masked.
func logSettingChanges(rt *config.Runtime, log *slog.Logger) {
	rt.OnChange(func(name, value string) {
		if name == config.ParamRequirePass && value != "" {
			value = config.Masked
		}
		log.Info("runtime setting applied", "param", name, "value", value)
	})
}

func watchConfig(path string, loader *confloader.Loader, log *slog.Logger) (*confloader.Watcher, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		w.Stop()
		return nil, err
	}
	w.OnChange(func(string) {
		next := config.Default()
		if err := loader.Reload(next); err != nil {
			log.Error("config reload failed", "error", err)
			return
		}
		if !logger.ValidLevel(next.Log.Level) {
			log.Error("config reload rejected", "log_level", next.Log.Level)
			return
		}
		if next.Log.Level != logger.GetLevel() {
			logger.SetLevel(next.Log.Level)
			log.Info("log level changed", "level", next.Log.Level)
		}
	})
	w.StartAsync()
	return w, nil
}
