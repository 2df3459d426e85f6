// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverMemory   Driver = "memory"
)

type Dispatch string

const (
	DispatchSync  Dispatch = "sync"
	DispatchAsync Dispatch = "async"
)

// Config keeps runtime settings for the server.
type Config struct {
	Port string

	DBDriver    Driver
	DatabaseURL string // file path for sqlite, DSN for postgres

	JWTSecret string
	TokenTTL  time.Duration

	CORSOrigins []string

	LogLevel  string
	LogPretty bool

	AlertDispatch  Dispatch
	AlertWorkers   int
	AlertQueueSize int

	GoalSweepSchedule string // robfig/cron spec
}

// Load is Read followed by Validate.
func Load(files ...string) (Config, error) {
	cfg, err := Read(files...)
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Read reads an optional .env (or the given files) and then the
// environment, with defaults for everything but JWT_SECRET. Variables
// already set in the environment win over file values. Only a broken env
// file is an error; the result is not validated.
func Read(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := Config{
		Port:              env("PORT", "8080"),
		DBDriver:          Driver(strings.ToLower(env("DB_DRIVER", string(DriverSQLite)))),
		DatabaseURL:       env("DATABASE_URL", ""),
		JWTSecret:         env("JWT_SECRET", ""),
		TokenTTL:          envDuration("TOKEN_TTL", 24*time.Hour),
		CORSOrigins:       envList("CORS_ORIGINS", []string{"*"}),
		LogLevel:          env("LOG_LEVEL", "info"),
		LogPretty:         envBool("LOG_PRETTY", false),
		AlertDispatch:     Dispatch(strings.ToLower(env("ALERT_DISPATCH", string(DispatchSync)))),
		AlertWorkers:      envInt("ALERT_WORKERS", 4),
		AlertQueueSize:    envInt("ALERT_QUEUE_SIZE", 256),
		GoalSweepSchedule: env("GOAL_SWEEP_SCHEDULE", "@hourly"),
	}

	if cfg.DatabaseURL == "" && cfg.DBDriver == DriverSQLite {
		cfg.DatabaseURL = "smartgestao.db"
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q (sqlite, postgres, memory)", c.DBDriver)
	}
	switch c.AlertDispatch {
	case DispatchSync, DispatchAsync:
	default:
		return fmt.Errorf("unknown ALERT_DISPATCH %q (sync, async)", c.AlertDispatch)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	return nil
}

func env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	n, err := strconv.Atoi(env(key, ""))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(env(key, ""))
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(env(key, ""))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envList(key string, fallback []string) []string {
	raw := env(key, "")
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
