package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/civicstack/campaign-server/internal/entity"
)

// InitializeEntities builds every catalog entity into the registry. Calling
// it again after a successful run is a no-op, so it is safe on every startup.
func InitializeEntities(ctx context.Context, initializer *entity.Initializer, registry *entity.Registry) error {
	if initializer == nil {
		return fmt.Errorf("initializer is required")
	}

	if registry == nil {
		return fmt.Errorf("entity registry is required")
	}

	slog.InfoContext(ctx, "Initializing campaign entities")

	if err := initializer.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize entities: %w", err)
	}

	count := registry.Len()
	slog.InfoContext(ctx, fmt.Sprintf("Successfully initialized %d entit%s", count, pluralize(count, "y", "ies")),
		"entities", registry.Names())

	return nil
}

// pluralize returns singular or plural suffix based on count
func pluralize(count int, singular, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}
