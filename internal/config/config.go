// Package config loads the service configuration from struct defaults, an
// optional YAML file, and FORUM_-prefixed environment variables, in that
// order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

var defaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/forum/config.yaml",
}

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Storage    StorageConfig    `koanf:"storage"`
	Logging    LoggingConfig    `koanf:"logging"`
	API        APIConfig        `koanf:"api"`
	Reconciler ReconcilerConfig `koanf:"reconciler"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type StorageConfig struct {
	// Backend selects the store implementation: postgres or badger.
	Backend     string `koanf:"backend"`
	DatabaseURL string `koanf:"database_url"`
	// BadgerPath is the data directory of the badger backend; ignored when
	// BadgerInMemory is set.
	BadgerPath      string `koanf:"badger_path"`
	BadgerInMemory  bool   `koanf:"badger_in_memory"`
	ConnectAttempts int    `koanf:"connect_attempts"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json or console
}

type APIConfig struct {
	PerPageDefault int `koanf:"per_page_default"`
	PerPageMax     int `koanf:"per_page_max"`
}

type ReconcilerConfig struct {
	Enabled   bool          `koanf:"enabled"`
	Interval  time.Duration `koanf:"interval"`
	BatchSize int           `koanf:"batch_size"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            4567,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Backend:         BackendPostgres,
			DatabaseURL:     "host=localhost user=postgres password=postgres dbname=forum port=5432 sslmode=disable",
			BadgerPath:      "data/forum",
			BadgerInMemory:  false,
			ConnectAttempts: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		API: APIConfig{
			PerPageDefault: 20,
			PerPageMax:     20,
		},
		Reconciler: ReconcilerConfig{
			Enabled:   false,
			Interval:  time.Minute,
			BatchSize: 100,
		},
	}
}

// Load builds the configuration from defaults, the first config file found
// (CONFIG_PATH, then ./config.yaml), and the environment. Environment keys
// use double underscores as section separators:
// FORUM_STORAGE__DATABASE_URL -> storage.database_url.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("FORUM_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "FORUM_"))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyLegacyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyLegacyEnv honors the plain DATABASE_URL and PORT variables so the
// service keeps working with unprefixed container environments.
func applyLegacyEnv(cfg *Config) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Storage.DatabaseURL = dsn
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendPostgres, BackendBadger:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == BackendPostgres && c.Storage.DatabaseURL == "" {
		return fmt.Errorf("storage.database_url is required for the postgres backend")
	}
	if c.API.PerPageDefault < 1 || c.API.PerPageMax < c.API.PerPageDefault {
		return fmt.Errorf("invalid pagination bounds: default %d, max %d",
			c.API.PerPageDefault, c.API.PerPageMax)
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range defaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
