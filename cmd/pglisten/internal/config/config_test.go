package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/pglisten/retry"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pglisten.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, 30*time.Second, cfg.Session.HealthCheckInterval)
	assert.Equal(t, retry.Unlimited, cfg.Session.RetryLimit)
	assert.False(t, cfg.Journal.Enabled)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
postgres:
  host: db.internal
  database: app
session:
  name: orders
  channels: [orders, users]
  retry_interval: 250ms
  retry_limit: 5
  retry_timeout: 10s
journal:
  enabled: true
  driver: postgres
  dsn: "host=db.internal dbname=audit"
  retention: 72h
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host, "unset keys keep defaults")
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, []string{"orders", "users"}, cfg.Session.Channels)
	assert.Equal(t, retry.Policy{Interval: 250 * time.Millisecond, Limit: 5, Timeout: 10 * time.Second},
		cfg.Session.RetryPolicy())
	assert.Equal(t, "postgres", cfg.Journal.Driver)
	assert.Equal(t, 72*time.Hour, cfg.Journal.Retention)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "postgres:\n  host: from-file\n")
	t.Setenv("PGHOST", "from-env")
	t.Setenv("PGLISTEN_CHANNELS", "a, b,,c")
	t.Setenv("PGLISTEN_RETRY_TIMEOUT", "1m")
	t.Setenv("SERVER_PORT", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Postgres.Host)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Session.Channels)
	assert.Equal(t, time.Minute, cfg.Session.RetryTimeout)
	assert.Equal(t, 8080, cfg.Server.Port, "unparsable values fall back")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad port", "server:\n  port: 70000\n"},
		{"retry limit below unlimited", "session:\n  retry_limit: -2\n"},
		{"unknown journal driver", "journal:\n  enabled: true\n  driver: oracle\n"},
		{"custom prefix with migrations", "journal:\n  enabled: true\n  prefix: app_\n"},
		{"empty journal prefix", "journal:\n  enabled: true\n  prefix: \"\"\n  migrate: false\n"},
		{"unknown log level", "log:\n  level: loud\n"},
		{"missing host", "postgres:\n  host: \"\"\n"},
		{"malformed yaml", "server: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_CustomPrefixWithoutMigrations(t *testing.T) {
	cfg, err := Load(writeConfig(t, "journal:\n  enabled: true\n  prefix: app_\n  migrate: false\n"))
	require.NoError(t, err)

	assert.Equal(t, "app_", cfg.Journal.Prefix)
	assert.False(t, cfg.Journal.Migrate)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestPostgresConfig_ClientConfig(t *testing.T) {
	p := PostgresConfig{Host: "h", Port: 5433, User: "u", Database: "d", SSLMode: "require"}
	c := p.ClientConfig()

	assert.Equal(t, "dbname=d host=h port=5433 sslmode=require user=u", c.DSN())
}
