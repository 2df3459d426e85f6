package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"PORT", "DB_DRIVER", "DATABASE_URL", "JWT_SECRET", "TOKEN_TTL", "CORS_ORIGINS",
	"LOG_LEVEL", "LOG_PRETTY", "ALERT_DISPATCH", "ALERT_WORKERS", "ALERT_QUEUE_SIZE",
	"GOAL_SWEEP_SCHEDULE",
}

// clearEnv unsets every config key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "") // registers restore
		os.Unsetenv(k)
	}
}

func missingFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load(missingFile(t))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "smartgestao.db", cfg.DatabaseURL)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, DispatchSync, cfg.AlertDispatch)
	assert.Equal(t, 4, cfg.AlertWorkers)
	assert.Equal(t, 256, cfg.AlertQueueSize)
	assert.Equal(t, "@hourly", cfg.GoalSweepSchedule)
	assert.False(t, cfg.LogPretty)
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PORT", "9000")
	t.Setenv("DB_DRIVER", "POSTGRES")
	t.Setenv("DATABASE_URL", "postgres://localhost/smart")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("CORS_ORIGINS", "https://app.example.com, http://localhost:5173,")
	t.Setenv("LOG_PRETTY", "true")
	t.Setenv("ALERT_DISPATCH", "async")
	t.Setenv("ALERT_WORKERS", "16")
	t.Setenv("ALERT_QUEUE_SIZE", "not-a-number")

	cfg, err := Load(missingFile(t))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, "postgres://localhost/smart", cfg.DatabaseURL)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, []string{"https://app.example.com", "http://localhost:5173"}, cfg.CORSOrigins)
	assert.True(t, cfg.LogPretty)
	assert.Equal(t, DispatchAsync, cfg.AlertDispatch)
	assert.Equal(t, 16, cfg.AlertWorkers)
	assert.Equal(t, 256, cfg.AlertQueueSize, "invalid numbers fall back")
}

func TestLoad_EnvFile(t *testing.T) {
	// GIVEN: A .env file and one variable already set in the environment
	// WHEN: Load reads the file
	// THEN: File values fill the gaps, the environment wins on conflicts

	clearEnv(t)
	t.Setenv("PORT", "7000")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=from-file\nPORT=1111\nDB_DRIVER=memory\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, DriverMemory, cfg.DBDriver)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret":   {},
		"unknown driver":   {"JWT_SECRET": "x", "DB_DRIVER": "mongo"},
		"postgres no dsn":  {"JWT_SECRET": "x", "DB_DRIVER": "postgres"},
		"unknown dispatch": {"JWT_SECRET": "x", "ALERT_DISPATCH": "kafka"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := Load(missingFile(t))
			assert.Error(t, err)
		})
	}
}

func TestRead_SkipsValidation(t *testing.T) {
	// GIVEN: An environment without JWT_SECRET
	// WHEN: Read loads it
	// THEN: No error yet, so flags can still fill in the gaps before Validate

	clearEnv(t)

	cfg, err := Read(missingFile(t))
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Error(t, cfg.Validate())
}

func TestRead_BrokenEnvFile(t *testing.T) {
	// GIVEN: An env file path that cannot be read (a directory)
	// WHEN: Read and Load run
	// THEN: Both report the file problem, not a missing setting

	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	dir := t.TempDir()

	_, err := Read(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load env file")

	_, err = Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load env file")
}
