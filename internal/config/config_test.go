package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "readiness.db", cfg.Store.DatabaseURL)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, int32(2), cfg.Store.MinConns)
	assert.Equal(t, 8, cfg.Engine.Workers)
	assert.Empty(t, cfg.Engine.RegistryPath)
	assert.Empty(t, cfg.Engine.MethodologyVersion)
	assert.Equal(t, 0, cfg.Engine.ReferenceYear)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.InDelta(t, 20, cfg.Server.RateLimitRPS, 0.001)
	assert.Equal(t, 40, cfg.Server.RateLimitBurst)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/readiness
engine:
  workers: 4
  registry_dir: ./methodologies
  methodology_version: "1.0"
  reference_year: 2023
log:
  level: debug
  format: console
server:
  port: 9090
  allowed_origins:
    - https://dashboard.example.org
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/readiness", cfg.Store.DatabaseURL)
	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.Equal(t, "./methodologies", cfg.Engine.RegistryDir)
	assert.Equal(t, "1.0", cfg.Engine.MethodologyVersion)
	assert.Equal(t, 2023, cfg.Engine.ReferenceYear)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://dashboard.example.org"}, cfg.Server.AllowedOrigins)
	// Defaults still apply for unset values
	assert.Equal(t, 40, cfg.Server.RateLimitBurst)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("READINESS_STORE_DRIVER", "postgres")
	t.Setenv("READINESS_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("READINESS_SERVER_PORT", "3000")
	t.Setenv("READINESS_ENGINE_WORKERS", "16")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 16, cfg.Engine.Workers)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "readiness.db"
	cfg.Store.MaxConns = 10
	cfg.Store.MinConns = 2
	cfg.Engine.Workers = 8
	cfg.Server.Port = 8080
	cfg.Server.RateLimitRPS = 20
	cfg.Server.RateLimitBurst = 40
	return cfg
}

func TestValidate_DefaultsPassEveryMode(t *testing.T) {
	for _, mode := range []string{"assess", "import", "runs", "migrate", "serve", "registry"} {
		t.Run(mode, func(t *testing.T) {
			assert.NoError(t, validDefaults().Validate(mode))
		})
	}
}

func TestValidate_Problems(t *testing.T) {
	tests := []struct {
		name   string
		mode   string
		mutate func(c *Config)
		want   string
	}{
		{"bad driver", "assess", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver must be sqlite or postgres"},
		{"no database url", "import", func(c *Config) { c.Store.DatabaseURL = "" }, "store.database_url is required"},
		{"conns inverted", "runs", func(c *Config) { c.Store.MinConns = 20 }, "store.min_conns must be <= store.max_conns"},
		{"zero workers", "assess", func(c *Config) { c.Engine.Workers = 0 }, "engine.workers must be between 1 and 64"},
		{"too many workers", "assess", func(c *Config) { c.Engine.Workers = 65 }, "engine.workers must be between 1 and 64"},
		{"negative reference year", "assess", func(c *Config) { c.Engine.ReferenceYear = -1 }, "engine.reference_year"},
		{"zero port", "serve", func(c *Config) { c.Server.Port = 0 }, "server.port must be > 0"},
		{"zero rps", "serve", func(c *Config) { c.Server.RateLimitRPS = 0 }, "server.rate_limit_rps"},
		{"zero burst", "serve", func(c *Config) { c.Server.RateLimitBurst = 0 }, "server.rate_limit_burst"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate(tt.mode)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_RegistryNeedsNoStore(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = ""
	cfg.Store.DatabaseURL = ""
	assert.NoError(t, cfg.Validate("registry"))
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "oracle"
	cfg.Server.Port = -1

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
	assert.Contains(t, err.Error(), "server.port")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
