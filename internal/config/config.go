// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"pointsbot/internal/migration"
)

// Config holds every runtime setting. Values are read once at startup;
// changing a migration mode requires a restart.
type Config struct {
	AppEnv           string
	LogLevel         string
	LogFormat        string
	HTTPAddr         string
	HTTPBasePath     string
	MetricsNamespace string

	// Legacy v1 schema, embedded SQLite.
	SQLitePath string

	// New v2 schema, Postgres. Required unless every service is stable.
	DatabaseURL    string
	DatabaseSchema string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      bool
	CacheTTL      time.Duration

	Modes migration.Modes

	WebhookToken    string
	ShutdownTimeout time.Duration
}

// Load reads and validates the environment. Invalid migration modes fail
// here, before any connection is opened.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		HTTPBasePath:     getEnv("HTTP_BASE_PATH", ""),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "pointsbot"),
		SQLitePath:       getEnv("SQLITE_PATH", "data/pointsbot.db"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DatabaseSchema:   getEnv("DATABASE_SCHEMA", "public"),
		RedisAddr:        getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          getInt("REDIS_DB", 0),
		RedisTLS:         getBool("REDIS_TLS", false),
		CacheTTL:         getDuration("CACHE_TTL", 5*time.Minute),
		WebhookToken:     os.Getenv("WEBHOOK_TOKEN"),
		ShutdownTimeout:  getDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}

	modes, err := migration.ParseModes(
		getEnv("USER_MIGRATION_MODE", string(migration.ModeStable)),
		getEnv("POINTS_MIGRATION_MODE", string(migration.ModeStable)),
		getEnv("SESSION_MIGRATION_MODE", string(migration.ModeStable)),
		getEnv("ACTION_MIGRATION_MODE", string(migration.ModeStable)),
	)
	if err != nil {
		return nil, err
	}
	cfg.Modes = modes

	if cfg.needsPostgres() && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when any service is in %s or %s mode",
			migration.ModeParallelTest, migration.ModeMigrated)
	}

	return cfg, nil
}

// needsPostgres reports whether any service touches the new schema.
func (c *Config) needsPostgres() bool {
	for _, m := range []migration.Mode{c.Modes.Users, c.Modes.Points, c.Modes.Sessions, c.Modes.Actions} {
		if m != migration.ModeStable {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
