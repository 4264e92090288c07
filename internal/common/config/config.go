// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Registry RegistryConfig `mapstructure:"registry"`
	Polling  PollingConfig  `mapstructure:"polling"`
	Store    StoreConfig    `mapstructure:"store"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address        string `mapstructure:"address"`
	MetricsAddress string `mapstructure:"metrics_address"`
	ReadTimeout    int    `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout   int    `mapstructure:"write_timeout"` // milliseconds
}

// RegistryConfig holds settings for the external registry system.
type RegistryConfig struct {
	BaseURL         string   `mapstructure:"base_url"`
	Timeout         int      `mapstructure:"timeout"` // milliseconds
	DisabledQueries []string `mapstructure:"disabled_queries"`
}

func (r RegistryConfig) RequestTimeout() time.Duration {
	if r.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(r.Timeout) * time.Millisecond
}

// PollingConfig holds the default bounded-retry policy for result
// retrieval.
type PollingConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
	Interval    int `mapstructure:"interval"` // milliseconds
}

func (p PollingConfig) IntervalDuration() time.Duration {
	if p.Interval <= 0 {
		return time.Second
	}
	return time.Duration(p.Interval) * time.Millisecond
}

// StoreConfig selects the result store backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // memory | redis | postgres
	TTL     int    `mapstructure:"ttl"`     // seconds, redis only, 0 = no expiry
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
