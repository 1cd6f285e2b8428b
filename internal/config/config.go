// Package config loads the process configuration from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRemote   = "remote"
)

// HTTPConfig holds the listener and static file settings.
type HTTPConfig struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	StaticDir       string        `yaml:"static_dir" env:"HTTP_STATIC_DIR" env-default:"web/dist"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

// RemoteConfig points at the hosted record service.
type RemoteConfig struct {
	BaseURL    string        `yaml:"base_url" env:"REMOTE_BASE_URL"`
	ProjectID  string        `yaml:"project_id" env:"REMOTE_PROJECT_ID"`
	PublicKey  string        `yaml:"public_key" env:"REMOTE_PUBLIC_KEY"`
	Timeout    time.Duration `yaml:"timeout" env:"REMOTE_TIMEOUT" env-default:"15s"`
	MaxRetries int           `yaml:"max_retries" env:"REMOTE_MAX_RETRIES" env-default:"3"`
}

// StoreConfig selects the task store backend and its connection.
type StoreConfig struct {
	Backend     string       `yaml:"backend" env:"STORE_BACKEND" env-default:"memory"`
	SQLitePath  string       `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"data/tasks.db"`
	PostgresDSN string       `yaml:"postgres_dsn" env:"POSTGRES_DSN"`
	Remote      RemoteConfig `yaml:"remote"`
}

// Config is the process configuration.
type Config struct {
	LogLevel string      `yaml:"log_level" env:"LOG_LEVEL" env-default:"INFO"`
	Timezone string      `yaml:"timezone" env:"TZ_NAME"`
	HTTP     HTTPConfig  `yaml:"http"`
	Store    StoreConfig `yaml:"store"`
}

// Load reads the config file at path with environment overrides. An empty
// path or a missing file means environment only.
func Load(path string) (Config, error) {
	var cfg Config

	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("cannot read env: %w", err)
		}
		return cfg, cfg.Validate()
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		var pe *os.PathError
		if !errors.As(err, &pe) {
			return Config{}, fmt.Errorf("cannot read config %q: %w", path, err)
		}
		cfg = Config{}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("cannot read env: %w", err)
		}
	}
	return cfg, cfg.Validate()
}

// MustLoad is Load that exits the process on failure.
func MustLoad(path string) Config {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("config: %s", err)
	}
	return cfg
}

// LoadDotEnv loads variables from .env files into the environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Validate checks the backend settings and the time zone.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("store.postgres_dsn is required for the postgres backend")
		}
	case BackendRemote:
		if c.Store.Remote.BaseURL == "" {
			return errors.New("store.remote.base_url is required for the remote backend")
		}
		if c.Store.Remote.MaxRetries < 0 {
			return errors.New("store.remote.max_retries must not be negative")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the configured time zone; empty means the process zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Level maps LogLevel to a slog level. Unknown names fall back to INFO.
func (c Config) Level() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
