// Package config loads the application configuration from a YAML or TOML file,
// applies environment overrides and validates the result.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/passbi/passbi_itinerary/internal/cache"
	"github.com/passbi/passbi_itinerary/internal/db"
	"github.com/passbi/passbi_itinerary/internal/logger"
	"github.com/passbi/passbi_itinerary/internal/middleware"
	"github.com/passbi/passbi_itinerary/internal/routing"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port         string        `yaml:"port" toml:"port" validate:"required,numeric"`
	AllowOrigins string        `yaml:"allow_origins" toml:"allow_origins"`
	ReadTimeout  time.Duration `yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" toml:"write_timeout"`
}

// AppConfig is the complete application configuration
type AppConfig struct {
	Server     ServerConfig               `yaml:"server" toml:"server"`
	Database   db.Config                  `yaml:"database" toml:"database"`
	Redis      cache.Config               `yaml:"redis" toml:"redis"`
	Routing    routing.Config             `yaml:"routing" toml:"routing"`
	Log        logger.Config              `yaml:"log" toml:"log"`
	Regenerate middleware.RateLimitConfig `yaml:"regenerate_limit" toml:"regenerate_limit"`
	Realtime   bool                       `yaml:"realtime" toml:"realtime"`
}

// Default returns the configuration used when no file is given
func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			Port:         "8080",
			AllowOrigins: "*",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: db.DefaultConfig(),
		Redis:    cache.DefaultConfig(),
		Routing:  routing.DefaultConfig(),
		Log:      logger.DefaultConfig(),
		Regenerate: middleware.RateLimitConfig{
			Name:   "regenerate",
			Limit:  10,
			Window: time.Minute,
		},
		Realtime: true,
	}
}

// Load reads path (when non-empty) over the defaults, applies environment
// overrides and validates. The format is chosen by extension: .yml, .yaml or .toml.
func Load(path string) (AppConfig, error) {
	cfg := Default()

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	applyEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the struct tags of the whole configuration
func Validate(cfg AppConfig) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func decodeFile(path string, cfg *AppConfig) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yml", ".yaml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
	return nil
}

// applyEnv overrides file values with the environment, the way deployments set them
func applyEnv(cfg *AppConfig) {
	cfg.Server.Port = getEnv("API_PORT", cfg.Server.Port)

	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvInt("DB_PORT", cfg.Database.Port)
	cfg.Database.Database = getEnv("DB_NAME", cfg.Database.Database)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)
	cfg.Database.MinConns = int32(getEnvInt("DB_MIN_CONNS", int(cfg.Database.MinConns)))
	cfg.Database.MaxConns = int32(getEnvInt("DB_MAX_CONNS", int(cfg.Database.MaxConns)))

	cfg.Redis.Host = getEnv("REDIS_HOST", cfg.Redis.Host)
	cfg.Redis.Port = getEnvInt("REDIS_PORT", cfg.Redis.Port)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.TLSEnabled = getEnv("REDIS_TLS_ENABLED", strconv.FormatBool(cfg.Redis.TLSEnabled)) == "true"

	cfg.Routing.ProviderURL = getEnv("OSRM_URL", cfg.Routing.ProviderURL)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}
