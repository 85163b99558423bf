// Package db contains code for connecting to the database and creating the
// campaign schema.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // Needs to be imported for Postgres driver
	_ "github.com/mattn/go-sqlite3"    // Needs to be imported for SQLite driver

	"github.com/civicstack/campaign-server/internal/config"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
)

// Connection wraps the database handle and the dialect it speaks
type Connection struct {
	DB      *sql.DB
	Dialect Dialect
}

// Open creates a database connection from the provided configuration and
// retries the first ping until the configured connect retry timeout expires.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*Connection, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration is required")
	}

	dialect, err := DialectFor(cfg.GetDriver())
	if err != nil {
		return nil, err
	}

	dsn, err := cfg.GetConnectionString()
	if err != nil {
		return nil, fmt.Errorf("failed to build connection string: %w", err)
	}

	sqlDB, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	configurePool(sqlDB, dialect, cfg)

	if err := pingWithRetry(ctx, sqlDB, cfg.GetConnectRetryTimeout()); err != nil {
		if closeErr := sqlDB.Close(); closeErr != nil {
			slog.Error("Failed to close database connection after ping failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if dialect == Postgres {
		slog.Info("Database connection established",
			"driver", cfg.GetDriver(),
			"user", cfg.User,
			"host", cfg.Host,
			"port", cfg.Port,
			"database", cfg.Database)
	} else {
		slog.Info("Database connection established", "driver", cfg.GetDriver(), "path", cfg.Path)
	}

	return &Connection{DB: sqlDB, Dialect: dialect}, nil
}

func configurePool(sqlDB *sql.DB, dialect Dialect, cfg *config.DatabaseConfig) {
	if dialect == SQLite {
		// SQLite allows a single writer; one connection avoids SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
		return
	}

	maxOpenConns := int(cfg.MaxOpenConns)
	if maxOpenConns == 0 {
		maxOpenConns = defaultMaxOpenConns
	}

	maxIdleConns := int(cfg.MaxIdleConns)
	if maxIdleConns == 0 {
		maxIdleConns = defaultMaxIdleConns
	}

	connMaxLifetime := cfg.GetConnMaxLifetime()
	if connMaxLifetime == 0 {
		connMaxLifetime = defaultConnMaxLifetime
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
}

func pingWithRetry(ctx context.Context, sqlDB *sql.DB, timeout time.Duration) error {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if err := sqlDB.PingContext(ctx); err != nil {
			slog.Warn("Database not reachable, retrying", "attempt", attempt, "error", err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(timeout),
	)
	return err
}

// Close closes the database connection
func (c *Connection) Close() error {
	if c.DB != nil {
		slog.Info("Closing database connection")
		return c.DB.Close()
	}
	return nil
}

// Ping verifies the database connection is still alive
func (c *Connection) Ping(ctx context.Context) error {
	if c.DB != nil {
		return c.DB.PingContext(ctx)
	}
	return fmt.Errorf("database connection is nil")
}
