package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/civicstack/campaign-server/internal/config"
	"github.com/civicstack/campaign-server/internal/db"
	"github.com/civicstack/campaign-server/internal/entity"
	"github.com/civicstack/campaign-server/internal/store"
)

// DatabaseFactory creates storage components over a single SQL connection
type DatabaseFactory struct {
	config *config.Config
	conn   *db.Connection
	tracer trace.Tracer
}

var _ Factory = (*DatabaseFactory)(nil)

// DatabaseFactoryOption is a functional option for configuring the DatabaseFactory
type DatabaseFactoryOption func(*DatabaseFactory)

// WithTracer sets the OpenTelemetry tracer for the record store.
// If not set, tracing will be disabled (no-op).
func WithTracer(tracer trace.Tracer) DatabaseFactoryOption {
	return func(f *DatabaseFactory) {
		f.tracer = tracer
	}
}

// NewDatabaseFactory opens the configured database and returns a factory over it
func NewDatabaseFactory(ctx context.Context, cfg *config.Config, opts ...DatabaseFactoryOption) (*DatabaseFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.Database == nil {
		return nil, fmt.Errorf("database configuration is required")
	}

	slog.Info("Creating database-backed storage factory", "driver", cfg.Database.GetDriver())

	conn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	factory := &DatabaseFactory{
		config: cfg,
		conn:   conn,
	}

	for _, opt := range opts {
		opt(factory)
	}

	return factory, nil
}

// CreateStore creates the SQL record store
func (d *DatabaseFactory) CreateStore(_ context.Context) (store.Store, error) {
	slog.Debug("Creating SQL record store")

	var opts []store.Option
	if d.tracer != nil {
		opts = append(opts, store.WithTracer(d.tracer))
		slog.Debug("Record store tracing enabled")
	}

	return store.New(d.conn, opts...)
}

// CreateSchemaCreator creates the DDL schema creator unless disabled by configuration
func (d *DatabaseFactory) CreateSchemaCreator(_ context.Context) (entity.SchemaCreator, error) {
	if !d.config.Schema.ShouldAutoCreate() {
		slog.Info("Schema auto-creation disabled; tables must exist already")
		return nil, nil
	}
	return db.NewSchemaCreator(d.conn), nil
}

// DB returns the underlying database handle
func (d *DatabaseFactory) DB() *sql.DB {
	return d.conn.DB
}

// Cleanup closes the database connection
func (d *DatabaseFactory) Cleanup() {
	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			slog.Error("Failed to close database connection", "error", err)
		}
	}
}
