package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mcoot/anonhere/internal/api"
	"github.com/mcoot/anonhere/internal/factory"
	redisstorage "github.com/mcoot/anonhere/internal/storage/redis"
	"github.com/mcoot/anonhere/internal/storage/sqlstore"
)

func main() {
	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(os.Getenv("LOG_LEVEL")),
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func run(logger *slog.Logger) error {
	cfg, err := configFromEnv(logger)
	if err != nil {
		return err
	}

	// Create application factory
	app, err := factory.New(cfg)
	if err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("closing storage", slog.String("error", err.Error()))
		}
	}()

	trustProxy, err := envBool("TRUST_PROXY", false)
	if err != nil {
		return err
	}

	router := api.NewRouter(api.RouterConfig{
		Logger:     logger,
		Chat:       app.Chat,
		Sweeper:    app.Sweeper,
		Storage:    app.Storage,
		TrustProxy: trustProxy,
	})

	serverConfig := api.DefaultServerConfig()
	if serverConfig.Port, err = envInt("PORT", serverConfig.Port); err != nil {
		return err
	}
	server := api.NewServer(router, serverConfig, logger)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Expiry is lazy on every request; a background sweep also clears
	// idle instances when configured
	sweepInterval, err := envDuration("SWEEP_INTERVAL", 0)
	if err != nil {
		return err
	}
	if sweepInterval > 0 {
		go app.Sweeper.Run(ctx, sweepInterval)
		logger.Info("background sweep enabled", slog.Duration("interval", sweepInterval))
	}

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", storageName(cfg.StorageType)),
	)
	return server.Run(ctx)
}

// configFromEnv builds the factory config from environment variables
func configFromEnv(logger *slog.Logger) (factory.Config, error) {
	cfg := factory.Config{
		Logger:      logger,
		StorageType: os.Getenv("STORAGE_TYPE"),
	}

	// Postgres is picked automatically when a URL is present
	if cfg.StorageType == "" && os.Getenv("POSTGRES_URL") != "" {
		cfg.StorageType = factory.StorageTypePostgres
	}

	switch cfg.StorageType {
	case factory.StorageTypeRedis:
		redisURL := os.Getenv("REDIS_URL")
		if redisURL == "" {
			return cfg, errors.New("REDIS_URL required when STORAGE_TYPE=redis")
		}
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = redisURL
		cfg.RedisConfig = &redisCfg
	case factory.StorageTypeSQLite:
		path := os.Getenv("SQLITE_PATH")
		if path == "" {
			path = "anonchat.db"
		}
		sqlCfg := sqlstore.SQLiteConfig(path)
		cfg.SQLConfig = &sqlCfg
	case factory.StorageTypePostgres:
		url := os.Getenv("POSTGRES_URL")
		if url == "" {
			return cfg, errors.New("POSTGRES_URL required when STORAGE_TYPE=postgres")
		}
		sqlCfg := sqlstore.PostgresConfig(url)
		cfg.SQLConfig = &sqlCfg
	}

	var err error
	if cfg.Retention.MessageTTL, err = envDuration("MESSAGE_TTL", 0); err != nil {
		return cfg, err
	}
	if cfg.Retention.RoomTTL, err = envDuration("ROOM_TTL", 0); err != nil {
		return cfg, err
	}
	if cfg.Retention.MinInterval, err = envDuration("SWEEP_MIN_INTERVAL", 0); err != nil {
		return cfg, err
	}
	if cfg.Session.IdleTimeout, err = envDuration("SESSION_IDLE_TIMEOUT", 0); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func storageName(storageType string) string {
	if storageType == "" {
		return factory.StorageTypeMemory
	}
	return storageType
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return d, nil
}

func envInt(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return n, nil
}

func envBool(name string, fallback bool) (bool, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", name, err)
	}
	return b, nil
}
