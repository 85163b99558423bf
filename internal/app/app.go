// Package app provides application lifecycle management for the campaign server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/civicstack/campaign-server/internal/config"
)

// defaultShutdownTimeout bounds the shutdown triggered by cancellation of the
// context the app was built with
const defaultShutdownTimeout = 10 * time.Second

// CampaignApp encapsulates all components needed to run the campaign API server
// It provides lifecycle management and graceful shutdown capabilities
type CampaignApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start serves HTTP until Stop is called, the context given to
// NewCampaignApp is cancelled, or the server fails.
func (app *CampaignApp) Start() error {
	g, ctx := errgroup.WithContext(app.ctx)

	g.Go(func() error {
		slog.Info("Server listening", "address", app.httpServer.Addr)
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("HTTP server shutdown after cancellation failed", "error", err)
		}
		return nil
	})

	return g.Wait()
}

// Stop gracefully stops the application with the given timeout.
// It shuts down the HTTP server, flushes telemetry and closes the database.
func (app *CampaignApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	serverErr := app.httpServer.Shutdown(shutdownCtx)

	// Cancel the application context and release storage
	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	if app.components != nil && app.components.Telemetry != nil {
		if err := app.components.Telemetry.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down telemetry", "error", err)
		}
	}

	if serverErr != nil {
		return fmt.Errorf("server forced to shutdown: %w", serverErr)
	}

	slog.Info("Server shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *CampaignApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server (useful for testing to get the actual port)
func (app *CampaignApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// GetComponents returns the components the app was built from
func (app *CampaignApp) GetComponents() *AppComponents {
	return app.components
}
