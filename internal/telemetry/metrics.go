package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InitMetricsMeterName is the name used for the entity initialization meter
const InitMetricsMeterName = "github.com/civicstack/campaign-server/entity"

// InitMetrics records entity initialization attempts. It implements
// entity.Observer.
type InitMetrics struct {
	initDuration  metric.Float64Histogram
	entitiesTotal metric.Int64Gauge
}

// NewInitMetrics creates the initialization instruments on provider.
// If provider is nil, it returns nil (no-op metrics).
func NewInitMetrics(provider metric.MeterProvider) (*InitMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(InitMetricsMeterName)

	initDuration, err := meter.Float64Histogram(
		"campaign_init_duration_seconds",
		metric.WithDescription("Duration of entity initialization attempts in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	entitiesTotal, err := meter.Int64Gauge(
		"campaign_entities_total",
		metric.WithDescription("Number of entities in the registry after the last initialization attempt"),
		metric.WithUnit("{entity}"),
	)
	if err != nil {
		return nil, err
	}

	return &InitMetrics{
		initDuration:  initDuration,
		entitiesTotal: entitiesTotal,
	}, nil
}

// InitializationFinished records the outcome of one initialization attempt
func (m *InitMetrics) InitializationFinished(ctx context.Context, duration time.Duration, entities int, err error) {
	if m == nil {
		return
	}

	m.initDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.Bool("success", err == nil)))
	m.entitiesTotal.Record(ctx, int64(entities))
}
