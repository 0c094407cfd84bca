// Package config loads application configuration from command-line flags, environment variables, an optional
// YAML file, and a .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverJSONFile = "jsonfile"
	DriverSQLite   = "sqlite"
	DriverBadger   = "badger"
	DriverPostgres = "postgres"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig     `yaml:"app"`
	Logger  LoggerConfig  `yaml:"logger"`
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Store   StoreConfig   `yaml:"store"`
	Catalog CatalogConfig `yaml:"catalog"`
	Client  ClientConfig  `yaml:"client"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `yaml:"environment" env:"ENV" env-default:"development"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port               string        `yaml:"port" env:"PORT" env-default:"4000"`
	ReadTimeout        time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout       time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout        time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
	AuthRatePerMinute  int           `yaml:"auth_rate_per_minute" env:"AUTH_RATE_PER_MINUTE" env-default:"20"`
	AuthRateBurst      int           `yaml:"auth_rate_burst" env:"AUTH_RATE_BURST" env-default:"5"`
}

// AuthConfig holds token configuration.
type AuthConfig struct {
	// TokenSecret seeds the PASETO key. When empty a random key is persisted at KeyFile.
	TokenSecret string        `yaml:"token_secret" env:"TOKEN_SECRET"`
	TokenTTL    time.Duration `yaml:"token_ttl" env:"TOKEN_TTL" env-default:"7h"`
	KeyFile     string        `yaml:"key_file" env:"AUTH_KEY_FILE"`
}

// StoreConfig selects and locates the record store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" env:"STORE_DRIVER" env-default:"jsonfile"`
	Path        string `yaml:"path" env:"STORE_PATH"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
}

// CatalogConfig holds listing defaults.
type CatalogConfig struct {
	PerPage int `yaml:"per_page" env:"PAGINATION_PER_PAGE" env-default:"10"`
	YearMin int `yaml:"year_min" env:"CATALOG_YEAR_MIN" env-default:"1450"`
	YearMax int `yaml:"year_max" env:"CATALOG_YEAR_MAX"` // 0 means the current year
}

// ClientConfig is published to front ends through GET /api/config. Nothing secret belongs here.
type ClientConfig struct {
	APIBaseURL      string `yaml:"api_base_url" env:"API_BASE_URL"`
	UploadCloudName string `yaml:"upload_cloud_name" env:"UPLOAD_CLOUD_NAME"`
	UploadPreset    string `yaml:"upload_preset" env:"UPLOAD_PRESET"`
}

// Load builds the configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. YAML file named by CONFIG_FILE, if any.
// 4. .env file.
// 5. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fset := flag.NewFlagSet("alquilibros", flag.ContinueOnError)
	fset.SetOutput(io.Discard)

	env := fset.String("env", "", "Environment (development, staging, production)")
	logLevel := fset.String("log-level", "", "Log level (debug, info, warn, error)")
	port := fset.String("port", "", "Server port (default: 4000)")
	storeDriver := fset.String("store-driver", "", "Record store backend (jsonfile, sqlite, badger, postgres)")
	storePath := fset.String("store-path", "", "Path of the store file or directory")
	tokenTTL := fset.String("token-ttl", "", "Session token lifetime (default: 7h)")
	envFile := fset.String("env-file", ".env", "Path to .env file")

	if err := fset.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if err := loadEnvFile(*envFile); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if file := os.Getenv("CONFIG_FILE"); file != "" {
		if err := cleanenv.ReadConfig(file, cfg); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	override(&cfg.App.Environment, *env)
	override(&cfg.Logger.Level, *logLevel)
	override(&cfg.Server.Port, *port)
	override(&cfg.Store.Driver, *storeDriver)
	override(&cfg.Store.Path, *storePath)
	if *tokenTTL != "" {
		ttl, err := time.ParseDuration(*tokenTTL)
		if err != nil {
			return nil, fmt.Errorf("invalid token ttl %q: %w", *tokenTTL, err)
		}
		cfg.Auth.TokenTTL = ttl
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Description returns the list of supported environment variables, for --help output.
func Description() string {
	text, err := cleanenv.GetDescription(&Config{}, nil)
	if err != nil {
		return ""
	}
	return text
}

// Validate checks that all config values are present and consistent.
func (c *Config) Validate() error {
	validEnvs := []string{"development", "staging", "production"}
	if !slices.Contains(validEnvs, c.App.Environment) {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, strings.ToLower(c.Logger.Level)) {
		return fmt.Errorf("invalid log level: %q (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if p, err := strconv.Atoi(c.Server.Port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("invalid port: %q", c.Server.Port)
	}

	switch c.Store.Driver {
	case DriverJSONFile, DriverSQLite, DriverBadger:
		if c.Store.Path == "" {
			return errors.New("store path cannot be empty")
		}
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("invalid store driver: %q", c.Store.Driver)
	}

	if c.Auth.TokenTTL <= 0 {
		return errors.New("token ttl must be positive")
	}

	if c.Catalog.PerPage <= 0 {
		return errors.New("items per page must be positive")
	}
	if c.Catalog.YearMin > c.Catalog.YearMax {
		return fmt.Errorf("catalog year range is empty: %d > %d", c.Catalog.YearMin, c.Catalog.YearMax)
	}

	if c.Server.AuthRatePerMinute <= 0 || c.Server.AuthRateBurst <= 0 {
		return errors.New("auth rate limit must be positive")
	}

	return nil
}

// DataDir is the directory holding local state such as the store files and the generated token key.
func (c *Config) DataDir() string {
	switch c.Store.Driver {
	case DriverBadger:
		return c.Store.Path
	case DriverPostgres:
		return "database"
	default:
		return filepath.Dir(c.Store.Path)
	}
}

// IsProduction reports whether the app runs in production.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// applyDefaults fills values that depend on other settings.
func (c *Config) applyDefaults() error {
	if c.Store.Path == "" {
		switch c.Store.Driver {
		case DriverJSONFile:
			c.Store.Path = filepath.Join("database", "db.json")
		case DriverSQLite:
			c.Store.Path = filepath.Join("database", "alquilibros.db")
		case DriverBadger:
			c.Store.Path = filepath.Join("database", "badger")
		}
	}

	if c.Store.Path != "" {
		expanded, err := expandPath(c.Store.Path)
		if err != nil {
			return fmt.Errorf("invalid store path: %w", err)
		}
		c.Store.Path = expanded
	}

	if c.Auth.KeyFile == "" {
		c.Auth.KeyFile = filepath.Join(c.DataDir(), "auth.key")
	}

	if c.Catalog.YearMax == 0 {
		c.Catalog.YearMax = time.Now().Year()
	}

	return nil
}

// expandPath expands a leading ~ and makes the path absolute.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return filepath.Clean(abs), nil
}

// loadEnvFile loads a .env file. A missing file is not an error; variables already set are not overwritten.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func override(dst *string, flagValue string) {
	if flagValue != "" {
		*dst = flagValue
	}
}
