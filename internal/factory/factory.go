package factory

import (
	"errors"
	"io"
	"log/slog"

	"github.com/Puci-G/rpsServer/internal/arena"
	"github.com/Puci-G/rpsServer/internal/dependencies/clock"
	"github.com/Puci-G/rpsServer/internal/dependencies/random"
	"github.com/Puci-G/rpsServer/internal/storage"
	"github.com/Puci-G/rpsServer/internal/storage/memory"
	"github.com/Puci-G/rpsServer/internal/storage/postgres"
	redisstorage "github.com/Puci-G/rpsServer/internal/storage/redis"
	"github.com/Puci-G/rpsServer/internal/transport/ws"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeRedis    = "redis"
	StorageTypePostgres = "postgres"
)

// App contains all wired application components
type App struct {
	// Storage
	Bank storage.Bank

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Core
	Arena *arena.Arena
	Hub   *ws.Hub
}

// Config holds configuration for the application factory
type Config struct {
	// Rules are the contest rules (zero value falls back to defaults)
	Rules arena.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the bank backend ("memory", "redis" or "postgres")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// PostgresURL is the connection string (required if StorageType is "postgres")
	PostgresURL string
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	rules := cfg.Rules
	if rules.EntryFee == 0 {
		rules = arena.DefaultConfig()
	}

	var bank storage.Bank
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		bank = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisBank, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		bank = redisBank
	case StorageTypePostgres:
		if cfg.PostgresURL == "" {
			return nil, errors.New("PostgresURL required when StorageType is postgres")
		}
		pgBank, err := postgres.New(cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		bank = pgBank
	default:
		return nil, errors.New("invalid StorageType: must be 'memory', 'redis' or 'postgres'")
	}

	clk := clock.New()
	rnd := random.New()

	return newWithDependencies(bank, clk, rnd, rules, logger, nil), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(bank storage.Bank, clk clock.Clock, rnd random.Random, rules arena.Config, logger *slog.Logger, dispatch func(func())) *App {
	hub := ws.NewHub(logger)
	a := arena.New(rules, arena.Deps{
		Logger:   logger,
		Clock:    clk,
		Random:   rnd,
		Store:    bank,
		Gateway:  bank,
		Sender:   hub,
		Dispatch: dispatch,
	})

	return &App{
		Bank:   bank,
		Clock:  clk,
		Random: rnd,
		Arena:  a,
		Hub:    hub,
	}
}
