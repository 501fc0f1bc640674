package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"

	"energy-dashboard/pkg/database"
	"energy-dashboard/pkg/logging"
)

// Dataset sources understood by the server
const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

// Config holds all configuration for the energy dashboard binaries
type Config struct {
	Server   ServerConfig   `env:", prefix=SERVER_"`
	Database DatabaseConfig `env:", prefix=DB_"`
	Logging  LoggingConfig  `env:", prefix=LOG_"`
	Dataset  DatasetConfig  `env:", prefix=DATASET_"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Host            string        `env:"HOST, default=0.0.0.0"`
	Port            int           `env:"PORT, default=8051"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT, default=15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT, default=30s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT, default=60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT, default=30s"`
}

// DatabaseConfig configures the optional PostgreSQL dataset store
type DatabaseConfig struct {
	Host            string        `env:"HOST, default=localhost"`
	Port            int           `env:"PORT, default=5432"`
	User            string        `env:"USER, default=postgres"`
	Password        string        `env:"PASSWORD"`
	Database        string        `env:"NAME, default=energy"`
	SSLMode         string        `env:"SSLMODE, default=disable"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS, default=10"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS, default=5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME, default=30m"`
	ConnMaxIdleTime time.Duration `env:"CONN_MAX_IDLE_TIME, default=5m"`
}

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Level string `env:"LEVEL, default=info"`
}

// DatasetConfig selects where the energy table is loaded from
type DatasetConfig struct {
	Source string `env:"SOURCE, default=csv"`
	Path   string `env:"PATH, default=data/owid-energy-data.csv"`
}

// LoadConfig loads configuration from the process environment
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(context.Background(), envconfig.OsLookuper())
}

// LoadConfigFrom loads configuration using the given lookuper
func LoadConfigFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that env tags cannot express
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	switch c.Dataset.Source {
	case SourceCSV:
		if c.Dataset.Path == "" {
			return fmt.Errorf("dataset path is required for csv source")
		}
	case SourcePostgres:
		if err := c.Database.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown dataset source %q, expected %q or %q", c.Dataset.Source, SourceCSV, SourcePostgres)
	}

	return nil
}

// Validate checks the database settings needed to open a connection
func (d *DatabaseConfig) Validate() error {
	if d.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if d.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if d.Port <= 0 || d.Port > 65535 {
		return fmt.Errorf("database port %d out of range", d.Port)
	}
	if d.MaxOpenConns <= 0 {
		return fmt.Errorf("database max open connections must be positive")
	}
	return nil
}

// LogLevel returns the parsed logging level, defaulting to info
func (c *Config) LogLevel() logging.LogLevel {
	level, _ := logging.ParseLevel(c.Logging.Level)
	return level
}

// Connection converts the settings into a database pool configuration
func (d *DatabaseConfig) Connection() *database.Config {
	return &database.Config{
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.Database,
		SSLMode:         d.SSLMode,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
	}
}
