package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	// DatabaseDriverKey records which database backs the campaign records
	DatabaseDriverKey = attribute.Key("campaign.db.driver")
	// EntityCountKey records how many entities the campaign catalog defines
	EntityCountKey = attribute.Key("campaign.entities.count")
)

// CampaignAttributes describes a campaign server deployment as resource attributes
func CampaignAttributes(driver string, entities int) []attribute.KeyValue {
	return []attribute.KeyValue{
		DatabaseDriverKey.String(driver),
		EntityCountKey.Int(entities),
	}
}

// serviceResource holds what every provider reports about the service
type serviceResource struct {
	name        string
	version     string
	environment string
	attributes  []attribute.KeyValue
}

func defaultServiceResource() serviceResource {
	return serviceResource{name: DefaultServiceName, version: "unknown"}
}

func (s serviceResource) build(ctx context.Context) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(s.name),
		semconv.ServiceVersion(s.version),
	}
	if s.environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(s.environment))
	}
	attrs = append(attrs, s.attributes...)

	res, err := resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}
