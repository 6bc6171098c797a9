// Package config provides configuration management for the pglisten daemon.
// Settings come from an optional YAML file and are then overridden by
// environment variables, with sensible defaults for everything else.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/coregx/pglisten"
	"github.com/coregx/pglisten/client"
	"github.com/coregx/pglisten/retry"
)

// Config holds all configuration for the pglisten daemon.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Session  SessionConfig  `yaml:"session"`
	Journal  JournalConfig  `yaml:"journal"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// PostgresConfig describes the LISTEN/NOTIFY target.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"` // Overrides the discrete fields when set
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	ApplicationName string        `yaml:"application_name"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// SessionConfig holds session behavior.
type SessionConfig struct {
	Name                string        `yaml:"name"`
	Channels            []string      `yaml:"channels"` // Channels to LISTEN on at startup
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
	RetryInterval       time.Duration `yaml:"retry_interval"`
	RetryLimit          int           `yaml:"retry_limit"` // -1 for unlimited
	RetryTimeout        time.Duration `yaml:"retry_timeout"`
	RawPayloads         bool          `yaml:"raw_payloads"` // Skip JSON decoding
}

// JournalConfig holds the notification journal configuration.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Driver        string        `yaml:"driver"` // mysql, postgres, sqlite3
	DSN           string        `yaml:"dsn"`
	Prefix        string        `yaml:"prefix"` // Table prefix (default: "pglisten_")
	Retention     time.Duration `yaml:"retention"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BatchSize     int           `yaml:"batch_size"`
	Migrate       bool          `yaml:"migrate"` // Apply embedded schema on start
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	policy := retry.DefaultPolicy()
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Database:        "postgres",
			SSLMode:         "disable",
			ApplicationName: "pglisten",
		},
		Session: SessionConfig{
			Name:                "pglisten",
			HealthCheckInterval: pglisten.DefaultHealthCheckInterval,
			RetryInterval:       policy.Interval,
			RetryLimit:          policy.Limit,
			RetryTimeout:        policy.Timeout,
		},
		Journal: JournalConfig{
			Driver:        "sqlite3",
			DSN:           "pglisten.db",
			Prefix:        migratedPrefix,
			Retention:     24 * time.Hour,
			FlushInterval: time.Second,
			BatchSize:     100,
			Migrate:       true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides settings from environment variables.
// Follows 12-factor app principles - configuration via environment.
func (c *Config) applyEnv() {
	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvInt("SERVER_PORT", c.Server.Port)

	c.Postgres.DSN = getEnv("PGLISTEN_DSN", c.Postgres.DSN)
	c.Postgres.Host = getEnv("PGHOST", c.Postgres.Host)
	c.Postgres.Port = getEnvInt("PGPORT", c.Postgres.Port)
	c.Postgres.User = getEnv("PGUSER", c.Postgres.User)
	c.Postgres.Password = getEnv("PGPASSWORD", c.Postgres.Password)
	c.Postgres.Database = getEnv("PGDATABASE", c.Postgres.Database)
	c.Postgres.SSLMode = getEnv("PGSSLMODE", c.Postgres.SSLMode)

	if channels := getEnv("PGLISTEN_CHANNELS", ""); channels != "" {
		c.Session.Channels = splitList(channels)
	}
	c.Session.HealthCheckInterval = getEnvDuration("PGLISTEN_HEALTH_CHECK_INTERVAL", c.Session.HealthCheckInterval)
	c.Session.RetryInterval = getEnvDuration("PGLISTEN_RETRY_INTERVAL", c.Session.RetryInterval)
	c.Session.RetryLimit = getEnvInt("PGLISTEN_RETRY_LIMIT", c.Session.RetryLimit)
	c.Session.RetryTimeout = getEnvDuration("PGLISTEN_RETRY_TIMEOUT", c.Session.RetryTimeout)

	c.Journal.Enabled = getEnvBool("JOURNAL_ENABLED", c.Journal.Enabled)
	c.Journal.Driver = getEnv("JOURNAL_DRIVER", c.Journal.Driver)
	c.Journal.DSN = getEnv("JOURNAL_DSN", c.Journal.DSN)
	c.Journal.Prefix = getEnv("JOURNAL_PREFIX", c.Journal.Prefix)
	c.Journal.Retention = getEnvDuration("JOURNAL_RETENTION", c.Journal.Retention)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// migratedPrefix is the table prefix the embedded journal schema creates.
const migratedPrefix = "pglisten_"

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.Server,
		validation.Field(&c.Server.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if err := c.Postgres.ClientConfig().Validate(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	if err := validation.ValidateStruct(&c.Session,
		validation.Field(&c.Session.HealthCheckInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.Session.RetryInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.Session.RetryLimit, validation.Min(retry.Unlimited)),
		validation.Field(&c.Session.RetryTimeout, validation.Min(time.Duration(0))),
	); err != nil {
		return fmt.Errorf("session: %w", err)
	}

	if c.Journal.Enabled {
		if err := validation.ValidateStruct(&c.Journal,
			validation.Field(&c.Journal.Driver, validation.Required, validation.In(driverNames()...)),
			validation.Field(&c.Journal.DSN, validation.Required),
			validation.Field(&c.Journal.Prefix, validation.Required, validation.When(c.Journal.Migrate,
				validation.In(migratedPrefix).Error("must be "+migratedPrefix+" unless migrate is off"),
			)),
			validation.Field(&c.Journal.Retention, validation.Min(time.Duration(0))),
			validation.Field(&c.Journal.FlushInterval, validation.Required, validation.Min(time.Millisecond)),
			validation.Field(&c.Journal.BatchSize, validation.Required, validation.Min(1)),
		); err != nil {
			return fmt.Errorf("journal: %w", err)
		}
	}

	return validation.ValidateStruct(&c.Log,
		validation.Field(&c.Log.Level, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.Log.Format, validation.In("console", "json")),
	)
}

// ClientConfig converts the target to a client.Config.
func (p PostgresConfig) ClientConfig() client.Config {
	return client.Config{
		ConnString:      p.DSN,
		Host:            p.Host,
		Port:            p.Port,
		User:            p.User,
		Password:        p.Password,
		Database:        p.Database,
		SSLMode:         p.SSLMode,
		ApplicationName: p.ApplicationName,
		ConnectTimeout:  p.ConnectTimeout,
	}
}

// RetryPolicy returns the session retry policy.
func (s SessionConfig) RetryPolicy() retry.Policy {
	return retry.Policy{
		Interval: s.RetryInterval,
		Limit:    s.RetryLimit,
		Timeout:  s.RetryTimeout,
	}
}

func driverNames() []interface{} {
	out := make([]interface{}, 0, len(pglisten.MigrationDrivers))
	for _, d := range pglisten.MigrationDrivers {
		out = append(out, d)
	}
	return out
}

// splitList splits a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv retrieves environment variable or returns default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves environment variable as integer or returns default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves environment variable as boolean or returns default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration retrieves environment variable as duration or returns default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
