package factory

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mcoot/anonhere/internal/dependencies/clock"
	"github.com/mcoot/anonhere/internal/dependencies/random"
	"github.com/mcoot/anonhere/internal/services/chat"
	"github.com/mcoot/anonhere/internal/services/presence"
	"github.com/mcoot/anonhere/internal/services/ratelimit"
	"github.com/mcoot/anonhere/internal/services/retention"
	"github.com/mcoot/anonhere/internal/services/session"
	"github.com/mcoot/anonhere/internal/storage"
	"github.com/mcoot/anonhere/internal/storage/memory"
	redisstorage "github.com/mcoot/anonhere/internal/storage/redis"
	"github.com/mcoot/anonhere/internal/storage/sqlstore"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeRedis    = "redis"
	StorageTypeSQLite   = "sqlite"
	StorageTypePostgres = "postgres"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Limiter  *ratelimit.Limiter
	Presence *presence.Tracker
	Sessions *session.Registry
	Sweeper  *retention.Sweeper
	Chat     *chat.Service
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// SQLConfig holds database settings (required if StorageType is "sqlite" or "postgres")
	SQLConfig *sqlstore.Config

	// Retention windows; zero fields take retention.DefaultConfig values
	Retention retention.Config
	// Session holds session registry settings
	Session session.Config
	// PresenceWindow is how long a poll counts toward a room's active count
	PresenceWindow time.Duration
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := newStorage(cfg)
	if err != nil {
		return nil, err
	}

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()

	return newWithDependencies(store, clk, rnd, cfg, logger), nil
}

// newStorage opens the configured storage backend
func newStorage(cfg Config) (storage.Storage, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig)
	case StorageTypeSQLite, StorageTypePostgres:
		if cfg.SQLConfig == nil {
			return nil, fmt.Errorf("SQLConfig required when StorageType is %s", storageType)
		}
		return sqlstore.New(*cfg.SQLConfig)
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be one of memory, redis, sqlite, postgres", storageType)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, cfg Config, logger *slog.Logger) *App {
	retentionCfg := withRetentionDefaults(cfg.Retention)

	limiter := ratelimit.New(clk)
	tracker := presence.New(clk, cfg.PresenceWindow)
	sessions := session.New(clk, rnd, cfg.Session)
	sweeper := retention.New(store, clk, limiter, tracker, sessions, retentionCfg, logger)

	chatCfg := chat.DefaultConfig()
	chatCfg.RoomTTL = retentionCfg.RoomTTL
	chatService := chat.New(store, clk, rnd, limiter, tracker, sessions, chatCfg, logger)

	return &App{
		Storage:  store,
		Clock:    clk,
		Random:   rnd,
		Limiter:  limiter,
		Presence: tracker,
		Sessions: sessions,
		Sweeper:  sweeper,
		Chat:     chatService,
	}
}

func withRetentionDefaults(cfg retention.Config) retention.Config {
	defaults := retention.DefaultConfig()
	if cfg.MessageTTL <= 0 {
		cfg.MessageTTL = defaults.MessageTTL
	}
	if cfg.RoomTTL <= 0 {
		cfg.RoomTTL = defaults.RoomTTL
	}
	if cfg.LimiterIdle <= 0 {
		cfg.LimiterIdle = defaults.LimiterIdle
	}
	return cfg
}

// Close releases the storage backend
func (a *App) Close() error {
	return a.Storage.Close()
}
