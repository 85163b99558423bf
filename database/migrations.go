// Package database holds the versioned PostgreSQL schema of the campaign
// server and the tooling that applies it.
package database

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // registers the pgx5:// scheme
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/civicstack/campaign-server/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator is the interface for the migration tooling.
type Migrator interface {
	Up() error
	Down() error
	Steps(int) error
	Version() (uint, bool, error)
	Close() (error, error)
}

// GetMigrate returns a migration instance over the embedded migrations for
// the given PostgreSQL connection string.
func GetMigrate(connString string) (*migrate.Migrate, error) {
	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", d, migrateURL(connString))
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// NewFromConfig returns a migrator for the configured database. Only
// PostgreSQL is versioned; SQLite schemas are created at startup.
func NewFromConfig(cfg *config.DatabaseConfig) (Migrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration is required")
	}
	if driver := cfg.GetDriver(); driver != config.DriverPostgres {
		return nil, fmt.Errorf("migrations require the %s driver, got %s", config.DriverPostgres, driver)
	}
	connString, err := cfg.GetConnectionString()
	if err != nil {
		return nil, fmt.Errorf("failed to build connection string: %w", err)
	}
	return GetMigrate(connString)
}

// InitSchema returns the DDL of the first migration
func InitSchema() (string, error) {
	data, err := fs.ReadFile(migrationsFS, "migrations/000001_init.up.sql")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// migrateURL rewrites postgres URLs onto the pgx v5 driver scheme
func migrateURL(connString string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(connString, scheme); ok {
			return "pgx5://" + rest
		}
	}
	return connString
}
