// Package cli provides common CLI initialization utilities.
// This package consolidates the wiring shared by the billtrack subcommands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"billtrack/internal/amqp"
	"billtrack/internal/backend"
	"billtrack/internal/cache"
	"billtrack/internal/config"
	"billtrack/internal/core"
	"billtrack/internal/localstore"
	"billtrack/internal/log"
	"billtrack/internal/metrics"
	"billtrack/internal/notify"
	"billtrack/internal/services"
	"billtrack/internal/storage"
)

// listCacheSize bounds the bill list cache; there is one entry per backend.
const listCacheSize = 8

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the application logger from cfg and installs it as the
// slog default. A non-empty levelOverride wins over LOG_LEVEL.
func SetupLogger(cfg *config.Config, levelOverride string) *log.Logger {
	level := cfg.LogLevel
	if strings.TrimSpace(levelOverride) != "" {
		level = levelOverride
	}
	logger := log.New(log.Config{
		Level:     log.ParseLevel(level),
		Format:    strings.ToLower(cfg.LogFormat),
		Component: log.ComponentApp,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration from the environment and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenFallbackStore opens the local fallback store: SQLite when a path is
// configured, memory otherwise.
func OpenFallbackStore(cfg *config.Config, logger *log.Logger) (*localstore.Store, error) {
	if cfg.FallbackDBPath == "" {
		logger.Info("Using in-memory fallback store")
		return localstore.New(storage.NewMemoryKV(), logger), nil
	}
	kv, err := storage.NewSQLiteKV(cfg.FallbackDBPath)
	if err != nil {
		return nil, fmt.Errorf("open fallback store %s: %w", cfg.FallbackDBPath, err)
	}
	logger.Info("Using SQLite fallback store", "path", cfg.FallbackDBPath)
	return localstore.New(kv, logger), nil
}

// ConnectAMQP dials the broker. It returns nil without error when AMQP is
// not configured.
func ConnectAMQP(ctx context.Context, cfg *config.Config, logger *log.Logger) (*amqp.Client, error) {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP not configured, bill events are not published")
		return nil, nil
	}
	client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to AMQP: %w", err)
	}
	logger.Info("Connected to AMQP", "exchange", cfg.AMQPExchange)
	return client, nil
}

// App is the wired application shared by the subcommands.
type App struct {
	Config    *config.Config
	Logger    *log.Logger
	Metrics   *metrics.Metrics
	Service   *services.BillService
	Publisher *amqp.Client
	Caches    *cache.Manager
	Reminders services.ReminderSettings
}

// NewApp opens the fallback store, the optional broker connection and the
// backend factory, and builds the bill service over them. withAMQP false
// skips the broker even when it is configured.
func NewApp(ctx context.Context, cfg *config.Config, logger *log.Logger, withAMQP bool) (*App, error) {
	store, err := OpenFallbackStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	// Notices go to the log and to whatever the request context carries.
	notifier := notify.Contextual{Base: notify.NewLog(logger)}
	factory := backend.NewFactory(backendCfg, notifier, logger)

	app := &App{
		Config:    cfg,
		Logger:    logger,
		Metrics:   metrics.New(),
		Caches:    cache.NewManager(logger),
		Reminders: services.SettingsFromNames(cfg.Reminders),
	}

	opts := []services.Option{
		services.WithMetrics(app.Metrics),
		services.WithNotifier(notifier),
	}
	if cfg.ListCacheTTL > 0 {
		lists := cache.NewLRUCache[[]core.Bill](listCacheSize, cfg.ListCacheTTL)
		app.Caches.Register(lists)
		opts = append(opts, services.WithListCache(lists))
	}
	if withAMQP {
		client, err := ConnectAMQP(ctx, cfg, logger)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		if client != nil {
			app.Publisher = client
			opts = append(opts, services.WithPublisher(client))
		}
	}

	app.Service = services.NewBillService(factory, store, logger, opts...)
	logger.Info("Bill service ready",
		log.FieldBackend, string(backendCfg.Default),
		"live", backendCfg.Live,
		"list_cache_ttl", cfg.ListCacheTTL.String())
	return app, nil
}

// Close stops cache cleanup and closes the store and the broker connection.
func (a *App) Close() error {
	a.Caches.Stop()
	return a.Service.Close()
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
