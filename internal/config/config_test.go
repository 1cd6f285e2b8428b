package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaultsFromEnv(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, "web/dist", cfg.HTTP.StaticDir)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 15*time.Second, cfg.Store.Remote.Timeout)
	assert.Equal(t, 3, cfg.Store.Remote.MaxRetries)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "config.yaml", `
log_level: DEBUG
timezone: UTC
http:
  address: ":9090"
  shutdown_timeout: 2s
store:
  backend: remote
  remote:
    base_url: https://records.example.com
    project_id: p1
    public_key: k1
    max_retries: 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.Equal(t, ":9090", cfg.HTTP.Address)
	assert.Equal(t, 2*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, BackendRemote, cfg.Store.Backend)
	assert.Equal(t, "https://records.example.com", cfg.Store.Remote.BaseURL)
	assert.Equal(t, 5, cfg.Store.Remote.MaxRetries)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.yaml", "store:\n  backend: memory\n")
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "/tmp/x.db", cfg.Store.SQLitePath)
}

func TestMissingFileFallsBackToEnv(t *testing.T) {
	t.Setenv("HTTP_ADDRESS", ":7000")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.HTTP.Address)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }},
		{"postgres without dsn", func(c *Config) { c.Store.Backend = BackendPostgres }},
		{"remote without url", func(c *Config) { c.Store.Backend = BackendRemote }},
		{"sqlite without path", func(c *Config) { c.Store.Backend = BackendSQLite; c.Store.SQLitePath = "" }},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"WARN":  slog.LevelWarn,
		"ERROR": slog.LevelError,
		"noise": slog.LevelInfo,
	} {
		assert.Equal(t, want, Config{LogLevel: in}.Level(), in)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "REMOTE_PROJECT_ID=from-dotenv\nLOG_LEVEL=ERROR\n")
	t.Setenv("LOG_LEVEL", "DEBUG")
	// registered so the variable is removed again after the test
	t.Setenv("REMOTE_PROJECT_ID", "")
	require.NoError(t, os.Unsetenv("REMOTE_PROJECT_ID"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))

	assert.Equal(t, "from-dotenv", os.Getenv("REMOTE_PROJECT_ID"))
	assert.Equal(t, "DEBUG", os.Getenv("LOG_LEVEL"), "existing variables win")
}
