package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/civicstack/campaign-server/internal/api"
	"github.com/civicstack/campaign-server/internal/app/storage"
	"github.com/civicstack/campaign-server/internal/config"
	"github.com/civicstack/campaign-server/internal/entity"
	"github.com/civicstack/campaign-server/internal/model"
	"github.com/civicstack/campaign-server/internal/store"
	"github.com/civicstack/campaign-server/internal/telemetry"
)

// CampaignAppOptions is a function that configures the campaign app builder
type CampaignAppOptions func(*campaignAppConfig) error

// campaignAppConfig collects the options of NewCampaignApp.
// It supports dependency injection for testing while providing sensible defaults for production
type campaignAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	storageFactory storage.Factory
	store          store.Store
	schemaCreator  entity.SchemaCreator
	catalog        *entity.Catalog

	// HTTP server options
	address     string
	middlewares []func(http.Handler) http.Handler

	// Telemetry components
	telemetry      *telemetry.Telemetry
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

func baseConfig(opts ...CampaignAppOptions) (*campaignAppConfig, error) {
	cfg := &campaignAppConfig{}

	// Apply options
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		cfg.config = config.Default()
	}
	if cfg.address == "" {
		cfg.address = cfg.config.Server.GetAddress()
	}

	return cfg, nil
}

// NewCampaignApp builds the entity registry, the record store and the HTTP
// server. Initialization runs to completion before it returns; a failed
// initialization is returned as an error and nothing is left running.
func NewCampaignApp(
	ctx context.Context,
	opts ...CampaignAppOptions,
) (*CampaignApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// Ensure cleanup happens on error
	var cleanupNeeded = true
	defer func() {
		if cleanupNeeded {
			cleanup()
		}
	}()

	if err := buildTelemetry(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to build telemetry: %w", err)
	}
	if cfg.telemetry != nil {
		tel := cfg.telemetry
		cleanups = append(cleanups, func() {
			if err := tel.Shutdown(context.Background()); err != nil {
				slog.Error("Failed to shut down telemetry", "error", err)
			}
		})
	}

	if err := buildStorageComponents(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to build storage components: %w", err)
	}
	if cfg.storageFactory != nil {
		cleanups = append(cleanups, cfg.storageFactory.Cleanup)
	}

	components, err := buildEntityComponents(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build entity components: %w", err)
	}
	components.Store = cfg.store
	components.Telemetry = cfg.telemetry

	if err := InitializeEntities(ctx, components.Initializer, components.Registry); err != nil {
		return nil, err
	}

	httpServer, err := buildHTTPServer(ctx, cfg, components)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	// Create application context
	appCtx, cancel := context.WithCancel(ctx)

	// Cleanup is now handled by the app, not in defer
	cleanupNeeded = false

	var once sync.Once
	cancelFunc := func() {
		once.Do(func() {
			if cfg.storageFactory != nil {
				cfg.storageFactory.Cleanup()
			}
		})
		cancel()
	}

	return &CampaignApp{
		config:     cfg.config,
		components: components,
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancelFunc,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) CampaignAppOptions {
	return func(cfg *campaignAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) CampaignAppOptions {
	return func(cfg *campaignAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		parts := strings.SplitN(addr, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		host := parts[0]
		port := parts[1]

		if port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) CampaignAppOptions {
	return func(cfg *campaignAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStorageFactory allows injecting a custom storage factory (for testing)
func WithStorageFactory(f storage.Factory) CampaignAppOptions {
	return func(cfg *campaignAppConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithStore injects a record store, skipping the database connection.
// No schema is created unless WithSchemaCreator is given as well.
func WithStore(s store.Store) CampaignAppOptions {
	return func(cfg *campaignAppConfig) error {
		if s == nil {
			return fmt.Errorf("store cannot be nil")
		}
		cfg.store = s
		return nil
	}
}

// WithSchemaCreator overrides the schema creator run after the entities are built
func WithSchemaCreator(sc entity.SchemaCreator) CampaignAppOptions {
	return func(cfg *campaignAppConfig) error {
		if sc == nil {
			return fmt.Errorf("schema creator cannot be nil")
		}
		cfg.schemaCreator = sc
		return nil
	}
}

// WithCatalog replaces the campaign catalog
func WithCatalog(c *entity.Catalog) CampaignAppOptions {
	return func(cfg *campaignAppConfig) error {
		if c == nil {
			return fmt.Errorf("catalog cannot be nil")
		}
		cfg.catalog = c
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for HTTP and
// initialization metrics, bypassing the telemetry configuration
func WithMeterProvider(mp metric.MeterProvider) CampaignAppOptions {
	return func(cfg *campaignAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider for HTTP and store
// spans, bypassing the telemetry configuration
func WithTracerProvider(tp trace.TracerProvider) CampaignAppOptions {
	return func(cfg *campaignAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// buildTelemetry creates the configured providers unless both were injected
func buildTelemetry(ctx context.Context, b *campaignAppConfig) error {
	if b.meterProvider != nil && b.tracerProvider != nil {
		return nil
	}
	if b.config.Telemetry == nil || !b.config.Telemetry.Enabled {
		return nil
	}

	slog.Info("Initializing telemetry")
	driver := config.DriverSQLite
	if b.config.Database != nil {
		driver = b.config.Database.GetDriver()
	}
	entities := len(model.Definitions())
	if b.catalog != nil {
		entities = b.catalog.Len()
	}
	tel, err := telemetry.New(ctx,
		telemetry.WithTelemetryConfig(b.config.Telemetry),
		telemetry.WithResourceAttributes(telemetry.CampaignAttributes(driver, entities)...),
	)
	if err != nil {
		return err
	}
	b.telemetry = tel

	if b.meterProvider == nil {
		b.meterProvider = tel.MeterProvider()
	}
	if b.tracerProvider == nil {
		b.tracerProvider = tel.TracerProvider()
	}
	return nil
}

// buildStorageComponents opens the database unless a store was injected
func buildStorageComponents(ctx context.Context, b *campaignAppConfig) error {
	if b.store != nil && b.storageFactory == nil {
		slog.Info("Using injected record store")
		return nil
	}

	slog.Info("Initializing storage components")

	if b.storageFactory == nil {
		var factoryOpts []storage.DatabaseFactoryOption
		if b.tracerProvider != nil {
			factoryOpts = append(factoryOpts, storage.WithTracer(b.tracerProvider.Tracer(store.TracerName)))
		}

		factory, err := storage.NewStorageFactory(ctx, b.config, factoryOpts...)
		if err != nil {
			return fmt.Errorf("failed to create storage factory: %w", err)
		}
		b.storageFactory = factory
	}

	if b.store == nil {
		st, err := b.storageFactory.CreateStore(ctx)
		if err != nil {
			return fmt.Errorf("failed to create record store: %w", err)
		}
		b.store = st
	}

	if b.schemaCreator == nil {
		sc, err := b.storageFactory.CreateSchemaCreator(ctx)
		if err != nil {
			return fmt.Errorf("failed to create schema creator: %w", err)
		}
		b.schemaCreator = sc
	}

	if b.telemetry != nil && b.storageFactory.DB() != nil {
		if err := b.telemetry.RegisterDBStats(b.storageFactory.DB(), dbStatsName(b.config)); err != nil {
			return fmt.Errorf("failed to register database metrics: %w", err)
		}
	}

	slog.Info("Storage components initialized successfully")
	return nil
}

func dbStatsName(c *config.Config) string {
	if c.Database != nil && c.Database.Database != "" {
		return c.Database.Database
	}
	return "campaign"
}

// buildEntityComponents creates the registry and its initializer
func buildEntityComponents(_ context.Context, b *campaignAppConfig) (*AppComponents, error) {
	slog.Info("Initializing entity components")

	if b.catalog == nil {
		catalog, err := model.NewCatalog()
		if err != nil {
			return nil, fmt.Errorf("failed to create entity catalog: %w", err)
		}
		b.catalog = catalog
	}

	var initOpts []entity.InitializerOption
	if b.schemaCreator != nil {
		initOpts = append(initOpts, entity.WithSchemaCreator(b.schemaCreator))
	}

	if b.meterProvider != nil {
		initMetrics, err := telemetry.NewInitMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create initialization metrics: %w", err)
		}
		if initMetrics != nil {
			initOpts = append(initOpts, entity.WithObserver(initMetrics))
			slog.Info("Initialization metrics enabled")
		}
	}

	registry := entity.NewRegistry()
	initializer, err := entity.NewInitializer(b.catalog, registry, initOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create initializer: %w", err)
	}

	return &AppComponents{
		Registry:    registry,
		Initializer: initializer,
		Accessor:    entity.NewAccessor(registry),
	}, nil
}

// buildHTTPServer builds the HTTP server with router and middleware
//
//nolint:unparam // we prefer having a similar interface
func buildHTTPServer(
	_ context.Context,
	b *campaignAppConfig,
	components *AppComponents,
) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	// Use default middlewares if not provided
	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.config.Server.GetRequestTimeout()),
			api.LoggingMiddleware,
		}
	}

	// Telemetry middlewares go first to observe every request
	var telemetryMiddlewares []func(http.Handler) http.Handler
	if b.tracerProvider != nil {
		telemetryMiddlewares = append(telemetryMiddlewares, telemetry.TracingMiddleware(b.tracerProvider))
		slog.Info("HTTP tracing middleware enabled")
	}
	if b.meterProvider != nil {
		metricsMiddleware, err := telemetry.MetricsMiddleware(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		if metricsMiddleware != nil {
			telemetryMiddlewares = append(telemetryMiddlewares, metricsMiddleware)
			slog.Info("HTTP metrics middleware enabled")
		}
	}
	middlewares := append(telemetryMiddlewares, b.middlewares...)

	serverOpts := []api.ServerOption{
		api.WithMiddlewares(middlewares...),
	}
	if b.telemetry != nil {
		if h := b.telemetry.MetricsHandler(); h != nil {
			serverOpts = append(serverOpts, api.WithMetricsHandler(h))
		}
	}

	router := api.NewServer(components.Accessor, b.store, serverOpts...)

	server := &http.Server{
		Addr:              b.address,
		Handler:           router,
		ReadTimeout:       b.config.Server.GetReadTimeout(),
		ReadHeaderTimeout: b.config.Server.GetReadTimeout(),
		WriteTimeout:      b.config.Server.GetWriteTimeout(),
		IdleTimeout:       b.config.Server.GetIdleTimeout(),
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}

