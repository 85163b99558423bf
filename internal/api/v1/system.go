package v1

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/civicstack/campaign-server/internal/api/common"
	"github.com/civicstack/campaign-server/internal/entity"
	"github.com/civicstack/campaign-server/internal/store"
	"github.com/civicstack/campaign-server/internal/versions"
)

// WelcomeMessage is returned by GET /
const WelcomeMessage = "Welcome to the Campaign Management System!"

// HealthRouter creates a router for the root, health, readiness and version endpoints
func HealthRouter(accessor entity.Accessor, st store.Store) http.Handler {
	r := chi.NewRouter()

	r.Get("/", welcomeHandler)
	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(accessor, st))
	r.Get("/version", versionHandler)

	return r
}

func welcomeHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, WelcomeResponse{Message: WelcomeMessage}, http.StatusOK)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, HealthResponse{Status: "healthy"}, http.StatusOK)
}

// readinessHandler reports ready once every entity is built and the
// database answers a ping.
func readinessHandler(accessor entity.Accessor, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := checkReadiness(r.Context(), accessor, st); err != nil {
			common.WriteErrorResponse(w, "service not ready: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		common.WriteJSONResponse(w, HealthResponse{Status: "ready"}, http.StatusOK)
	}
}

func checkReadiness(ctx context.Context, accessor entity.Accessor, st store.Store) error {
	if state := accessor.State(); state != entity.Completed {
		return fmt.Errorf("entity registry is %s", state)
	}
	if err := st.Ping(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}
