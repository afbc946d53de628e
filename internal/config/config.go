// Package config loads splitledger settings from an optional YAML file and the environment.
//
// Precedence, lowest first: built-in defaults, the YAML file, environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"gopkg.in/yaml.v3"

	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/pkg/logging"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the full runtime configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	Auth    AuthConfig    `yaml:"auth"`
	Ledger  LedgerConfig  `yaml:"ledger"`
}

type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`
}

type StorageConfig struct {
	// Driver is sqlite, postgres or memory.
	Driver string `yaml:"driver"`
	// Path is the SQLite database file.
	Path string `yaml:"path"`
	// DSN is the postgres connection string.
	DSN string `yaml:"dsn"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type AuthConfig struct {
	// JWTSecret is shared with the identity provider. Empty disables token checks.
	JWTSecret string `yaml:"jwt_secret"`
	// Required rejects anonymous RPCs. It needs JWTSecret.
	Required bool `yaml:"required"`
}

type LedgerConfig struct {
	LockTimeout time.Duration `yaml:"lock_timeout"`
	// Currency is the ISO 4217 code used when displaying minor units.
	Currency string `yaml:"currency"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Addr: ":8080"},
		Storage: StorageConfig{Driver: DriverSQLite, Path: "./data/ledger.db"},
		Log:     LogConfig{Level: "info", Format: "text"},
		Ledger:  LedgerConfig{LockTimeout: ledger.DefaultLockTimeout, Currency: money.USD},
	}
}

// Load reads the YAML file at path (skipped when empty), applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	return load(path, os.Getenv)
}

func load(path string, lookup func(string) string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true) // Reject unknown fields
		if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(lookup func(string) string, key, fallback string) string {
	if value := lookup(key); value != "" {
		return value
	}
	return fallback
}

func (c *Config) applyEnv(lookup func(string) string) error {
	c.Server.Addr = getEnv(lookup, "SPLITLEDGER_ADDR", c.Server.Addr)
	c.Storage.Driver = getEnv(lookup, "DB_DRIVER", c.Storage.Driver)
	c.Storage.Path = getEnv(lookup, "DB_PATH", c.Storage.Path)
	c.Storage.DSN = getEnv(lookup, "DB_DSN", c.Storage.DSN)
	c.Log.Level = getEnv(lookup, "LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv(lookup, "LOG_FORMAT", c.Log.Format)
	c.Auth.JWTSecret = getEnv(lookup, "JWT_SECRET", c.Auth.JWTSecret)
	c.Ledger.Currency = strings.ToUpper(getEnv(lookup, "LEDGER_CURRENCY", c.Ledger.Currency))

	if v := lookup("LEDGER_LOCK_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid LEDGER_LOCK_TIMEOUT %q: %w", v, err)
		}
		c.Ledger.LockTimeout = d
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage.dsn is required for the postgres driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q (want sqlite, postgres or memory)", c.Storage.Driver))
	}

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Auth.Required && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.required needs a JWT secret (auth.jwt_secret or JWT_SECRET)"))
	}
	if err := logging.ValidateFormat(c.Log.Format); err != nil {
		errs = append(errs, err)
	}
	if c.Ledger.LockTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ledger.lock_timeout must be positive, got %s", c.Ledger.LockTimeout))
	}
	if money.GetCurrency(c.Ledger.Currency) == nil {
		errs = append(errs, fmt.Errorf("unknown ledger.currency %q", c.Ledger.Currency))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
