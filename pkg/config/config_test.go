package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	assert := assert.New(t)

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal("sqlite3", cfg.DB.Driver)
	assert.Equal("taskflow.sqlite", cfg.DB.Path)
	assert.Equal(":8080", cfg.HTTP.Addr)
	assert.Empty(cfg.HTTP.TrustedProxies)
	assert.Equal(time.Hour, cfg.Session.TTL)
	assert.Equal(30*time.Second, cfg.SMTP.Timeout)
	assert.Equal("info", cfg.Log.Level)
	assert.False(cfg.Metrics("dev").Enabled)
}

func TestLoadFileAndEnv(t *testing.T) {
	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "taskflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db:
  driver: mysql
  host: db.internal
  name: tasks
http:
  addr: ":9090"
  trusted_proxies:
    - 10.0.0.0/8
    - 192.168.1.5
session:
  ttl: 30m
smtp:
  host: mail.internal
`), 0o600))

	t.Setenv("TASKFLOW_HTTP_ADDR", ":7070")
	t.Setenv("TASKFLOW_SESSION_SECRET", "from-the-environment")
	t.Setenv("TASKFLOW_TELEMETRY_STDOUT", "true")

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal("mysql", cfg.DB.Driver)
	assert.Equal("db.internal", cfg.DB.Host)
	assert.Equal(3306, cfg.DB.Port)
	assert.Equal(":7070", cfg.HTTP.Addr)
	assert.Equal([]string{"10.0.0.0/8", "192.168.1.5"}, cfg.HTTP.TrustedProxies)
	assert.Equal(30*time.Minute, cfg.Session.TTL)
	assert.Equal("from-the-environment", cfg.Session.Secret)
	assert.True(cfg.Metrics("dev").Enabled)

	dbCfg := cfg.Database()
	assert.Equal("tasks", dbCfg.Name)

	mail := cfg.Mail()
	assert.Equal("mail.internal", mail.Host)
	assert.Equal(587, mail.Port)
}

func TestLoadRejectsBadDriver(t *testing.T) {
	t.Setenv("TASKFLOW_DB_DRIVER", "postgres")

	_, err := Load(New(), "")
	assert.EqualError(t, err, `db.driver must be sqlite3 or mysql, got "postgres"`)
}

func TestLoadRejectsBadProxy(t *testing.T) {
	t.Setenv("TASKFLOW_HTTP_TRUSTED_PROXIES", "10.0.0.1,not-a-proxy")

	_, err := Load(New(), "")
	assert.EqualError(t, err, `http.trusted_proxies: "not-a-proxy" is not an IP or CIDR`)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NotNil(t, err)
}
