package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Suggest  SuggestConfig  `json:"suggest"`
	Logging  LoggingConfig  `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port         int    `json:"port"`
	Host         string `json:"host"`
	ReadTimeout  int    `json:"read_timeout_seconds"`
	WriteTimeout int    `json:"write_timeout_seconds"`
}

// DatabaseConfig represents the relational store configuration
type DatabaseConfig struct {
	Driver string `json:"driver"` // "postgres" or "sqlite3"
	DSN    string `json:"-"`      // Never serialize credentials
}

// SuggestConfig represents suggestion engine configuration
type SuggestConfig struct {
	DefaultLimit      int     `json:"default_limit"`
	MaxStatsLimit     int     `json:"max_stats_limit"`
	DueRatio          float64 `json:"due_ratio"`
	UpcomingRatio     float64 `json:"upcoming_ratio"`
	MinOccurrences    int     `json:"min_occurrences"`
	VariantSampleSize int     `json:"variant_sample_size"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "localhost",
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "./data/listkeeper.db",
		},
		Suggest: SuggestConfig{
			DefaultLimit:      8,
			MaxStatsLimit:     200,
			DueRatio:          0.9,
			UpcomingRatio:     0.75,
			MinOccurrences:    2,
			VariantSampleSize: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads configuration from environment variables and defaults
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := DefaultConfig()

	loadFromEnv(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func loadFromEnv(config *Config) {
	loadServerConfig(config)
	loadDatabaseConfig(config)
	loadSuggestConfig(config)
	loadLoggingConfig(config)
}

// loadServerConfig loads server configuration from environment
func loadServerConfig(config *Config) {
	if port := os.Getenv("LISTKEEPER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("LISTKEEPER_HOST"); host != "" {
		config.Server.Host = host
	}
	if readTimeout := os.Getenv("LISTKEEPER_READ_TIMEOUT_SECONDS"); readTimeout != "" {
		if rt, err := strconv.Atoi(readTimeout); err == nil {
			config.Server.ReadTimeout = rt
		}
	}
	if writeTimeout := os.Getenv("LISTKEEPER_WRITE_TIMEOUT_SECONDS"); writeTimeout != "" {
		if wt, err := strconv.Atoi(writeTimeout); err == nil {
			config.Server.WriteTimeout = wt
		}
	}
}

// loadDatabaseConfig loads database configuration from environment
func loadDatabaseConfig(config *Config) {
	if driver := os.Getenv("LISTKEEPER_DB_DRIVER"); driver != "" {
		config.Database.Driver = driver
	}
	if dsn := os.Getenv("LISTKEEPER_DB_DSN"); dsn != "" {
		config.Database.DSN = dsn
	} else if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		config.Database.DSN = dsn
	}
}

// loadSuggestConfig loads suggestion engine configuration from environment
func loadSuggestConfig(config *Config) {
	if limit := os.Getenv("LISTKEEPER_SUGGEST_DEFAULT_LIMIT"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			config.Suggest.DefaultLimit = l
		}
	}
	if limit := os.Getenv("LISTKEEPER_SUGGEST_MAX_STATS_LIMIT"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			config.Suggest.MaxStatsLimit = l
		}
	}
	if ratio := os.Getenv("LISTKEEPER_SUGGEST_DUE_RATIO"); ratio != "" {
		if r, err := strconv.ParseFloat(ratio, 64); err == nil {
			config.Suggest.DueRatio = r
		}
	}
	if ratio := os.Getenv("LISTKEEPER_SUGGEST_UPCOMING_RATIO"); ratio != "" {
		if r, err := strconv.ParseFloat(ratio, 64); err == nil {
			config.Suggest.UpcomingRatio = r
		}
	}
}

// loadLoggingConfig loads logging configuration from environment
func loadLoggingConfig(config *Config) {
	if level := os.Getenv("LISTKEEPER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("LISTKEEPER_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}

	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite3" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN cannot be empty")
	}

	if c.Suggest.DefaultLimit <= 0 {
		return fmt.Errorf("default suggestion limit must be positive")
	}
	if c.Suggest.MaxStatsLimit <= 0 {
		return fmt.Errorf("max stats limit must be positive")
	}
	if c.Suggest.DueRatio <= 0 || c.Suggest.DueRatio > 2 {
		return fmt.Errorf("due ratio must be in (0, 2]")
	}
	if c.Suggest.UpcomingRatio <= 0 || c.Suggest.UpcomingRatio >= c.Suggest.DueRatio {
		return fmt.Errorf("upcoming ratio must be positive and below the due ratio")
	}
	if c.Suggest.MinOccurrences < 2 {
		return fmt.Errorf("min occurrences must be at least 2")
	}

	return nil
}
