package v1

import (
	"github.com/civicstack/campaign-server/internal/entity"
	"github.com/civicstack/campaign-server/internal/model"
)

// DataResponse wraps every successful payload
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse is the body of a paginated list
type ListResponse struct {
	Data any      `json:"data"`
	Meta ListMeta `json:"meta"`
}

// ListMeta describes the page returned by a list endpoint
type ListMeta struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status"`
}

// WelcomeResponse is the body of GET /
type WelcomeResponse struct {
	Message string `json:"message"`
}

// CatalogResponse describes the entity catalog and its initialization state
type CatalogResponse struct {
	State    entity.State   `json:"state"`
	Entities []CatalogEntry `json:"entities"`
}

// CatalogEntry is one definition of the catalog. Table is only present once
// the registry is initialized.
type CatalogEntry struct {
	Name      string       `json:"name"`
	DependsOn []string     `json:"depends_on"`
	Table     *model.Table `json:"table,omitempty"`
}

// CanvasserStats summarizes canvasser records
type CanvasserStats struct {
	TotalCanvassers    int            `json:"total_canvassers"`
	IntentionBreakdown map[string]int `json:"intention_breakdown"`
	RecentContacts     int            `json:"recent_contacts"`
}
