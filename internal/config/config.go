// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath        string
	ListenAddr    string
	CycleInterval time.Duration
	LockWait      time.Duration
	LockTTL       time.Duration
	APIBaseURL    string
	APITimeout    time.Duration
	RedisURL      string
	LogLevel      slog.Level
}

// HasRedis reports whether shard locks should be shared through Redis rather
// than held in process.
func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}

// LoadDotEnv reads KEY=value pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables and returns a validated Config.
// All variables are optional: KILLSYNC_DB_PATH (killsync.db),
// KILLSYNC_LISTEN_ADDR (127.0.0.1:8080), KILLSYNC_CYCLE_INTERVAL (1s),
// KILLSYNC_LOCK_WAIT (60s), KILLSYNC_LOCK_TTL (10m),
// KILLSYNC_API_BASE_URL (https://api.eveonline.com), KILLSYNC_API_TIMEOUT (30s),
// KILLSYNC_REDIS_URL (unset, in-process locks) and KILLSYNC_LOG_LEVEL (info).
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:     stringVar("KILLSYNC_DB_PATH", "killsync.db"),
		ListenAddr: stringVar("KILLSYNC_LISTEN_ADDR", "127.0.0.1:8080"),
		APIBaseURL: stringVar("KILLSYNC_API_BASE_URL", "https://api.eveonline.com"),
		RedisURL:   os.Getenv("KILLSYNC_REDIS_URL"),
	}

	var err error
	if cfg.CycleInterval, err = durationVar("KILLSYNC_CYCLE_INTERVAL", time.Second); err != nil {
		return nil, err
	}
	if cfg.LockWait, err = durationVar("KILLSYNC_LOCK_WAIT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.LockTTL, err = durationVar("KILLSYNC_LOCK_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.APITimeout, err = durationVar("KILLSYNC_API_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	if v, ok := os.LookupEnv("KILLSYNC_LOG_LEVEL"); ok && v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
			return nil, fmt.Errorf("KILLSYNC_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	if cfg.LockTTL <= cfg.LockWait {
		return nil, fmt.Errorf("KILLSYNC_LOCK_TTL (%s) must exceed KILLSYNC_LOCK_WAIT (%s)", cfg.LockTTL, cfg.LockWait)
	}

	return cfg, nil
}

func stringVar(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func durationVar(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, parsed)
	}
	return parsed, nil
}
