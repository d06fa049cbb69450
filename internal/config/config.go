// Package config loads server configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Puci-G/rpsServer/internal/arena"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeRedis    = "redis"
	StorageTypePostgres = "postgres"
)

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig selects and configures the bank backend
type StorageConfig struct {
	// Type is "memory", "redis" or "postgres"
	Type string `yaml:"type"`

	// RedisURL is required when Type is "redis"
	RedisURL string `yaml:"redis_url"`

	// PostgresURL is required when Type is "postgres"
	PostgresURL string `yaml:"postgres_url"`
}

// GameConfig holds the contest rules. Durations are whole seconds.
type GameConfig struct {
	EntryFee        int64 `yaml:"entry_fee"`
	StartingBalance int64 `yaml:"starting_balance"`
	RoundSeconds    int   `yaml:"round_seconds"`
	RoundsToWin     int   `yaml:"rounds_to_win"`
	GraceSeconds    int   `yaml:"grace_seconds"`
	LeadInSeconds   int   `yaml:"lead_in_seconds"`
	InterRoundDelay int   `yaml:"inter_round_seconds"`

	// Settlement credit retry policy
	SettleRetries      int `yaml:"settle_retries"`
	SettleRetrySeconds int `yaml:"settle_retry_seconds"`
}

// Config is the full server configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Game    GameConfig    `yaml:"game"`
}

// Default returns the standard configuration
func Default() Config {
	rules := arena.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Host: "",
			Port: 8080,
		},
		Storage: StorageConfig{
			Type: StorageTypeMemory,
		},
		Game: GameConfig{
			EntryFee:           rules.EntryFee,
			StartingBalance:    rules.StartingBalance,
			RoundSeconds:       int(rules.RoundTime / time.Second),
			RoundsToWin:        rules.RoundsToWin,
			GraceSeconds:       int(rules.GracePeriod / time.Second),
			LeadInSeconds:      int(rules.MatchLeadIn / time.Second),
			InterRoundDelay:    int(rules.InterRoundDelay / time.Second),
			SettleRetries:      rules.SettleRetries,
			SettleRetrySeconds: int(rules.SettleRetryDelay / time.Second),
		},
	}
}

// Load reads configuration from the given YAML file (skipped if path
// is empty) and applies environment overrides on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnvOrDefault("RPS_HOST", c.Server.Host)
	c.Server.Port = getEnvInt("RPS_PORT", c.Server.Port)
	c.Storage.Type = getEnvOrDefault("STORAGE_TYPE", c.Storage.Type)
	c.Storage.RedisURL = getEnvOrDefault("REDIS_URL", c.Storage.RedisURL)
	c.Storage.PostgresURL = getEnvOrDefault("DATABASE_URL", c.Storage.PostgresURL)
}

func (c *Config) validate() error {
	switch c.Storage.Type {
	case StorageTypeMemory:
	case StorageTypeRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("redis_url required when storage type is %q", StorageTypeRedis)
		}
	case StorageTypePostgres:
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres_url required when storage type is %q", StorageTypePostgres)
		}
	default:
		return fmt.Errorf("invalid storage type %q", c.Storage.Type)
	}

	if c.Game.EntryFee <= 0 || c.Game.StartingBalance < 0 {
		return fmt.Errorf("invalid game economy: fee %d, starting balance %d",
			c.Game.EntryFee, c.Game.StartingBalance)
	}
	if c.Game.RoundSeconds <= 0 || c.Game.RoundsToWin <= 0 || c.Game.GraceSeconds <= 0 {
		return fmt.Errorf("invalid game timing: round %ds, win threshold %d, grace %ds",
			c.Game.RoundSeconds, c.Game.RoundsToWin, c.Game.GraceSeconds)
	}
	if c.Game.LeadInSeconds < 0 || c.Game.InterRoundDelay < 0 {
		return fmt.Errorf("invalid game timing: lead-in %ds, inter-round %ds",
			c.Game.LeadInSeconds, c.Game.InterRoundDelay)
	}
	if c.Game.SettleRetries <= 0 || c.Game.SettleRetrySeconds <= 0 {
		return fmt.Errorf("invalid settlement retry policy: retries %d, delay %ds",
			c.Game.SettleRetries, c.Game.SettleRetrySeconds)
	}
	return nil
}

// Rules converts the game section into arena rules
func (c *Config) Rules() arena.Config {
	return arena.Config{
		EntryFee:         c.Game.EntryFee,
		StartingBalance:  c.Game.StartingBalance,
		RoundTime:        time.Duration(c.Game.RoundSeconds) * time.Second,
		RoundsToWin:      c.Game.RoundsToWin,
		GracePeriod:      time.Duration(c.Game.GraceSeconds) * time.Second,
		MatchLeadIn:      time.Duration(c.Game.LeadInSeconds) * time.Second,
		InterRoundDelay:  time.Duration(c.Game.InterRoundDelay) * time.Second,
		SettleRetries:    c.Game.SettleRetries,
		SettleRetryDelay: time.Duration(c.Game.SettleRetrySeconds) * time.Second,
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
