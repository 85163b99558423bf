package app

import (
	"github.com/civicstack/campaign-server/internal/entity"
	"github.com/civicstack/campaign-server/internal/store"
	"github.com/civicstack/campaign-server/internal/telemetry"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Registry holds the built entities
	Registry *entity.Registry

	// Initializer builds the registry from the catalog
	Initializer *entity.Initializer

	// Accessor is the read-only view handed to the API
	Accessor entity.Accessor

	// Store persists records of the built tables
	Store store.Store

	// Telemetry owns the tracer and meter providers (optional)
	Telemetry *telemetry.Telemetry
}
