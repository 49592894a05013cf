package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// EngineConfig configures the scoring engine and methodology lookup.
type EngineConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
	// RegistryPath is a single methodology file; empty uses the embedded default.
	RegistryPath string `yaml:"registry_path" mapstructure:"registry_path"`
	// RegistryDir holds versioned methodology files; it takes precedence
	// over RegistryPath when set.
	RegistryDir        string `yaml:"registry_dir" mapstructure:"registry_dir"`
	MethodologyVersion string `yaml:"methodology_version" mapstructure:"methodology_version"`
	// ReferenceYear pins staleness; 0 uses the latest year in the record set.
	ReferenceYear int `yaml:"reference_year" mapstructure:"reference_year"`
}

// ServerConfig configures the read-only API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("READINESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "readiness.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("engine.workers", 8)
	v.SetDefault("engine.registry_path", "")
	v.SetDefault("engine.registry_dir", "")
	v.SetDefault("engine.methodology_version", "")
	v.SetDefault("engine.reference_year", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit_rps", 20)
	v.SetDefault("server.rate_limit_burst", 40)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes:
// "assess", "import", "runs", "migrate", "serve", "registry".
func (c *Config) Validate(mode string) error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	needsStore := false
	switch mode {
	case "registry":
	case "assess":
		needsStore = true
		if c.Engine.Workers < 1 || c.Engine.Workers > 64 {
			add("engine.workers must be between 1 and 64")
		}
		if c.Engine.ReferenceYear < 0 {
			add("engine.reference_year must be >= 0")
		}
	case "import", "runs", "migrate":
		needsStore = true
	case "serve":
		needsStore = true
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			add("server.port must be > 0 and <= 65535")
		}
		if c.Server.RateLimitRPS <= 0 {
			add("server.rate_limit_rps must be > 0")
		}
		if c.Server.RateLimitBurst < 1 {
			add("server.rate_limit_burst must be >= 1")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if needsStore {
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			add("store.driver must be sqlite or postgres, got %q", c.Store.Driver)
		}
		if c.Store.DatabaseURL == "" {
			add("store.database_url is required")
		}
		if c.Store.MinConns > c.Store.MaxConns && c.Store.MaxConns > 0 {
			add("store.min_conns must be <= store.max_conns")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
