// Package config provides configuration loading and management for the campaign server.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/civicstack/campaign-server/internal/telemetry"
)

const (
	// DriverPostgres selects PostgreSQL through pgx
	DriverPostgres = "postgres"

	// DriverSQLite selects an embedded SQLite database file
	DriverSQLite = "sqlite"
)

const (
	// EnvPrefix prefixes every environment variable the server reads
	EnvPrefix = "CAMPAIGN"

	// PasswordEnvVar holds the database password when no password file is configured
	PasswordEnvVar = "CAMPAIGN_DATABASE_PASSWORD"

	defaultSQLitePath          = "campaign.db"
	defaultAddress             = ":8080"
	defaultConnectRetryTimeout = 30 * time.Second
	defaultRequestTimeout      = 60 * time.Second
	defaultReadTimeout         = 10 * time.Second
	defaultWriteTimeout        = 75 * time.Second
	defaultIdleTimeout         = 120 * time.Second
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Server    ServerConfig      `yaml:"server,omitempty"`
	Database  *DatabaseConfig   `yaml:"database,omitempty"`
	Schema    SchemaConfig      `yaml:"schema,omitempty"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// ServerConfig defines HTTP server settings
type ServerConfig struct {
	// Address is the listen address, e.g. ":8080"
	Address string `yaml:"address,omitempty"`

	// RequestTimeout bounds the handling of a single request (e.g. "60s")
	RequestTimeout string `yaml:"requestTimeout,omitempty"`

	ReadTimeout  string `yaml:"readTimeout,omitempty"`
	WriteTimeout string `yaml:"writeTimeout,omitempty"`
	IdleTimeout  string `yaml:"idleTimeout,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Driver is either "postgres" or "sqlite". Defaults to sqlite.
	Driver string `yaml:"driver,omitempty"`

	// Path is the SQLite database file
	Path string `yaml:"path,omitempty"`

	// Host is the database server hostname or IP address
	Host string `yaml:"host,omitempty"`

	// Port is the database server port
	Port int `yaml:"port,omitempty"`

	// User is the database username
	User string `yaml:"user,omitempty"`

	// PasswordFile is the path to a file containing the database password
	// The file should contain only the password with optional trailing whitespace
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database,omitempty"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// MaxIdleConns is the maximum number of idle connections in the pool
	MaxIdleConns int32 `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`

	// ConnectRetryTimeout bounds how long startup retries the first ping (e.g. "30s")
	ConnectRetryTimeout string `yaml:"connectRetryTimeout,omitempty"`
}

// SchemaConfig controls schema creation at startup
type SchemaConfig struct {
	// AutoCreate creates missing tables once all entities are built. Defaults to true.
	AutoCreate *bool `yaml:"autoCreate,omitempty"`
}

// Default returns the configuration used when no file is given: a local
// SQLite database with schema auto-creation.
func Default() *Config {
	return &Config{
		Database: &DatabaseConfig{Driver: DriverSQLite, Path: defaultSQLitePath},
	}
}

// GetDriver returns the configured driver, defaulting to sqlite
func (d *DatabaseConfig) GetDriver() string {
	if d.Driver == "" {
		return DriverSQLite
	}
	return d.Driver
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from CAMPAIGN_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv(PasswordEnvVar); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s environment variable", PasswordEnvVar,
	)
}

// GetConnectionString builds the driver specific data source name. For
// PostgreSQL the password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	if d.GetDriver() == DriverSQLite {
		path := d.Path
		if path == "" {
			path = defaultSQLitePath
		}
		return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path), nil
	}

	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		url.QueryEscape(password),
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	)

	return connString, nil
}

// GetConnectRetryTimeout returns the startup ping retry budget
func (d *DatabaseConfig) GetConnectRetryTimeout() time.Duration {
	return parseDurationOr(d.ConnectRetryTimeout, defaultConnectRetryTimeout)
}

// GetConnMaxLifetime returns the maximum connection lifetime, zero meaning unlimited
func (d *DatabaseConfig) GetConnMaxLifetime() time.Duration {
	return parseDurationOr(d.ConnMaxLifetime, 0)
}

// GetAddress returns the listen address, defaulting to :8080
func (s ServerConfig) GetAddress() string {
	if s.Address == "" {
		return defaultAddress
	}
	return s.Address
}

// GetRequestTimeout returns the per-request timeout
func (s ServerConfig) GetRequestTimeout() time.Duration {
	return parseDurationOr(s.RequestTimeout, defaultRequestTimeout)
}

// GetReadTimeout returns the HTTP server read timeout
func (s ServerConfig) GetReadTimeout() time.Duration {
	return parseDurationOr(s.ReadTimeout, defaultReadTimeout)
}

// GetWriteTimeout returns the HTTP server write timeout. It should exceed
// the request timeout so timed out handlers can still answer.
func (s ServerConfig) GetWriteTimeout() time.Duration {
	return parseDurationOr(s.WriteTimeout, defaultWriteTimeout)
}

// GetIdleTimeout returns the HTTP keep-alive idle timeout
func (s ServerConfig) GetIdleTimeout() time.Duration {
	return parseDurationOr(s.IdleTimeout, defaultIdleTimeout)
}

// ShouldAutoCreate reports whether tables are created at startup
func (s SchemaConfig) ShouldAutoCreate() bool {
	return s.AutoCreate == nil || *s.AutoCreate
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates a YAML configuration document
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if config.Database == nil {
		config.Database = Default().Database
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := c.Server.validate(); err != nil {
		return err
	}

	if c.Database != nil {
		if err := c.Database.validate(); err != nil {
			return err
		}
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	return nil
}

func (s ServerConfig) validate() error {
	for field, value := range map[string]string{
		"server.requestTimeout": s.RequestTimeout,
		"server.readTimeout":    s.ReadTimeout,
		"server.writeTimeout":   s.WriteTimeout,
		"server.idleTimeout":    s.IdleTimeout,
	} {
		if err := validateDuration(field, value); err != nil {
			return err
		}
	}
	return nil
}

func (d *DatabaseConfig) validate() error {
	switch d.GetDriver() {
	case DriverSQLite:
	case DriverPostgres:
		if d.Host == "" {
			return fmt.Errorf("database.host is required for the postgres driver")
		}
		if d.Database == "" {
			return fmt.Errorf("database.database is required for the postgres driver")
		}
		if d.Port <= 0 || d.Port > 65535 {
			return fmt.Errorf("database.port must be between 1 and 65535, got %d", d.Port)
		}
	default:
		return fmt.Errorf("database.driver must be %s or %s, got %s", DriverPostgres, DriverSQLite, d.Driver)
	}

	if d.MaxOpenConns < 0 || d.MaxIdleConns < 0 {
		return fmt.Errorf("database connection pool sizes cannot be negative")
	}
	if err := validateDuration("database.connMaxLifetime", d.ConnMaxLifetime); err != nil {
		return err
	}
	return validateDuration("database.connectRetryTimeout", d.ConnectRetryTimeout)
}

func validateDuration(field, value string) error {
	if value == "" {
		return nil
	}
	if _, err := time.ParseDuration(value); err != nil {
		return fmt.Errorf("%s must be a valid duration (e.g., '30s', '1m'): %w", field, err)
	}
	return nil
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
