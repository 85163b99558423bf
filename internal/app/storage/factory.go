// Package storage provides factory functions for creating storage-dependent components.
// Related components (record store, schema creator, connection stats) are
// created from one database connection so they always agree on the dialect.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/civicstack/campaign-server/internal/config"
	"github.com/civicstack/campaign-server/internal/entity"
	"github.com/civicstack/campaign-server/internal/store"
)

// Factory creates storage-dependent components as a family.
type Factory interface {
	// CreateStore creates the record store serving the API
	CreateStore(ctx context.Context) (store.Store, error)

	// CreateSchemaCreator creates the schema creator run by the initializer.
	// It returns nil when schema auto-creation is disabled.
	CreateSchemaCreator(ctx context.Context) (entity.SchemaCreator, error)

	// DB exposes the underlying handle for connection pool metrics
	DB() *sql.DB

	// Cleanup releases any resources held by this factory.
	// Should be called when the application shuts down.
	Cleanup()
}

// NewStorageFactory creates a storage factory for the configured database
func NewStorageFactory(ctx context.Context, cfg *config.Config, opts ...DatabaseFactoryOption) (Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	switch driver := cfg.Database.GetDriver(); driver {
	case config.DriverPostgres, config.DriverSQLite:
		return NewDatabaseFactory(ctx, cfg, opts...)
	default:
		return nil, fmt.Errorf("unknown database driver: %s", driver)
	}
}
