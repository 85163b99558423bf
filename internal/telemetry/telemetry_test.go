package telemetry

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestNew_Disabled(t *testing.T) {
	t.Parallel()

	for name, cfg := range map[string]*Config{
		"nil config":      nil,
		"disabled config": {Metrics: &MetricsConfig{Enabled: true}},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			tel, err := New(context.Background(), WithTelemetryConfig(cfg))
			require.NoError(t, err)

			_, ok := tel.TracerProvider().(tracenoop.TracerProvider)
			assert.True(t, ok)
			_, ok = tel.MeterProvider().(noop.MeterProvider)
			assert.True(t, ok)
			assert.Nil(t, tel.MetricsHandler())
			assert.NoError(t, tel.RegisterDBStats(&sql.DB{}, "campaign"))
			assert.NoError(t, tel.Shutdown(context.Background()))
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), WithTelemetryConfig(&Config{
		Enabled: true,
		Tracing: &TracingConfig{Enabled: true, Sampling: 3},
	}))
	assert.ErrorContains(t, err, "invalid telemetry configuration")
}

func TestNew_PrometheusMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tel, err := New(ctx, WithTelemetryConfig(&Config{
		Enabled: true,
		Metrics: &MetricsConfig{Enabled: true},
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	_, ok := tel.MeterProvider().(*sdkmetric.MeterProvider)
	require.True(t, ok, "expected SDK meter provider")

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, tel.RegisterDBStats(db, "campaign"))

	counter, err := tel.MeterProvider().Meter("test").Int64Counter("campaign_test_events_total")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	handler := tel.MetricsHandler()
	require.NotNil(t, handler)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "campaign_test_events_total")
	assert.Contains(t, body, "go_goroutines")
	assert.Contains(t, body, `go_sql_open_connections{db_name="campaign"}`)
}

func TestNew_ResourceAttributesExported(t *testing.T) {
	t.Parallel()

	tel, err := New(context.Background(),
		WithTelemetryConfig(&Config{
			Enabled:     true,
			Environment: "staging",
			Metrics:     &MetricsConfig{Enabled: true},
		}),
		WithResourceAttributes(CampaignAttributes("sqlite", 17)...),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	counter, err := tel.MeterProvider().Meter("test").Int64Counter("campaign_test_donations_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	rr := httptest.NewRecorder()
	tel.MetricsHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	assert.Contains(t, body, "target_info")
	assert.Contains(t, body, `campaign_db_driver="sqlite"`)
	assert.Contains(t, body, `campaign_entities_count="17"`)
	assert.Contains(t, body, `deployment_environment="staging"`)
}
