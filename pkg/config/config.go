// Package config loads taskflow settings from defaults, an optional YAML file and
// TASKFLOW_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/matt-steen/taskflow/pkg/db"
	"github.com/matt-steen/taskflow/pkg/notify"
	"github.com/matt-steen/taskflow/pkg/telemetry"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of the environment variables; "db.path" is read from TASKFLOW_DB_PATH.
const EnvPrefix = "TASKFLOW"

// Config holds every setting.
type Config struct {
	DB        DBConfig        `mapstructure:"db"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Session   SessionConfig   `mapstructure:"session"`
	Log       LogConfig       `mapstructure:"log"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Admin     AdminConfig     `mapstructure:"admin"`
}

// DBConfig selects and locates the database.
type DBConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	SecureCookie bool          `mapstructure:"secure_cookie"`
	// TrustedProxies are the IPs or CIDRs whose X-Forwarded-For is believed.
	// Empty trusts none and the client IP is the peer address.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// SessionConfig configures the session tokens.
type SessionConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
	JSON  bool   `mapstructure:"json"`
}

// SMTPConfig configures the mail server; an empty host disables mail.
type SMTPConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// TelemetryConfig configures metrics.
type TelemetryConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Stdout   bool          `mapstructure:"stdout"`
	Interval time.Duration `mapstructure:"interval"`
}

// AdminConfig holds the password of the admin account created on an empty database.
type AdminConfig struct {
	Password string `mapstructure:"password"`
}

// Defaults returns the settings used when nothing else is configured.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"db.driver":            db.DriverSQLite,
		"db.path":              "taskflow.sqlite",
		"db.host":              "localhost",
		"db.port":              3306,
		"db.user":              "taskflow",
		"db.password":          "",
		"db.name":              "taskflow",
		"http.addr":            ":8080",
		"http.read_timeout":    "15s",
		"http.write_timeout":   "15s",
		"http.secure_cookie":   false,
		"http.trusted_proxies": []string{},
		"session.secret":       "",
		"session.ttl":          "1h",
		"log.level":            "info",
		"log.file":             "",
		"log.json":             false,
		"smtp.host":            "",
		"smtp.port":            587,
		"smtp.user":            "",
		"smtp.password":        "",
		"smtp.from":            "taskflow@localhost",
		"smtp.timeout":         "30s",
		"telemetry.enabled":    false,
		"telemetry.stdout":     false,
		"telemetry.interval":   "30s",
		"admin.password":       "",
	}
}

// New returns a viper instance with the defaults and environment binding in place.
func New() *viper.Viper {
	v := viper.New()

	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads path into v when it is set, then decodes and checks the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}

		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case db.DriverSQLite, "sqlite":
		if c.DB.Path == "" {
			return errors.New("db.path is required for the sqlite driver")
		}
	case db.DriverMySQL:
		if c.DB.Host == "" || c.DB.Name == "" {
			return errors.New("db.host and db.name are required for the mysql driver")
		}
	default:
		return fmt.Errorf("db.driver must be %s or %s, got %q", db.DriverSQLite, db.DriverMySQL, c.DB.Driver)
	}

	for _, proxy := range c.HTTP.TrustedProxies {
		if net.ParseIP(proxy) != nil {
			continue
		}

		if _, _, err := net.ParseCIDR(proxy); err != nil {
			return fmt.Errorf("http.trusted_proxies: %q is not an IP or CIDR", proxy)
		}
	}

	if c.Session.TTL <= 0 {
		return errors.New("session.ttl must be positive")
	}

	return nil
}

// Database converts the db settings for db.NewDatabase.
func (c *Config) Database() db.Config {
	return db.Config{
		Driver:   c.DB.Driver,
		Path:     c.DB.Path,
		Host:     c.DB.Host,
		Port:     c.DB.Port,
		User:     c.DB.User,
		Password: c.DB.Password,
		Name:     c.DB.Name,
	}
}

// Mail converts the smtp settings for notify.New.
func (c *Config) Mail() notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		User:     c.SMTP.User,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
	}
}

// Metrics converts the telemetry settings for telemetry.Init.
func (c *Config) Metrics(version string) telemetry.Config {
	return telemetry.Config{
		Enabled:     c.Telemetry.Enabled || c.Telemetry.Stdout,
		Stdout:      c.Telemetry.Stdout,
		Interval:    c.Telemetry.Interval,
		ServiceName: "taskflow",
		Version:     version,
	}
}
