package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "splitledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load("", env(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, 5*time.Second, cfg.Ledger.LockTimeout)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, `
server:
  addr: ":9090"
storage:
  driver: postgres
  dsn: "host=db user=ledger"
log:
  level: debug
  format: json
ledger:
  lock_timeout: 250ms
  currency: EUR
`)

	cfg, err := load(path, env(nil))
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "host=db user=ledger", cfg.Storage.DSN)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 250*time.Millisecond, cfg.Ledger.LockTimeout)
	assert.Equal(t, "EUR", cfg.Ledger.Currency)

	cfg, err = load(path, env(map[string]string{
		"SPLITLEDGER_ADDR":    ":7070",
		"DB_DRIVER":           "memory",
		"LOG_LEVEL":           "warn",
		"JWT_SECRET":          "s3cret",
		"LEDGER_LOCK_TIMEOUT": "2s",
		"LEDGER_CURRENCY":     "jpy",
	}))
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 2*time.Second, cfg.Ledger.LockTimeout)
	assert.Equal(t, "JPY", cfg.Ledger.Currency)
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := load(writeFile(t, ""), env(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{name: "unknown field", file: "storage:\n  drvier: sqlite\n"},
		{name: "unknown driver", env: map[string]string{"DB_DRIVER": "mysql"}},
		{name: "postgres without dsn", env: map[string]string{"DB_DRIVER": "postgres"}},
		{name: "bad lock timeout", env: map[string]string{"LEDGER_LOCK_TIMEOUT": "soon"}},
		{name: "negative lock timeout", env: map[string]string{"LEDGER_LOCK_TIMEOUT": "-1s"}},
		{name: "unknown currency", env: map[string]string{"LEDGER_CURRENCY": "XXX1"}},
		{name: "unknown log format", env: map[string]string{"LOG_FORMAT": "xml"}},
		{name: "auth required without secret", file: "auth:\n  required: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := ""
			if tt.file != "" {
				path = writeFile(t, tt.file)
			}
			_, err := load(path, env(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "missing.yaml"), env(nil))
	assert.Error(t, err)
}
