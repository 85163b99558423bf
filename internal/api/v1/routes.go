// Package v1 provides the campaign REST API: generic record endpoints for
// every catalog table plus a few aggregate views.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/civicstack/campaign-server/internal/api/common"
	"github.com/civicstack/campaign-server/internal/entity"
	"github.com/civicstack/campaign-server/internal/model"
	"github.com/civicstack/campaign-server/internal/store"
)

const (
	// DefaultPerPage is the page size used when per_page is absent
	DefaultPerPage = 25
	// MaxPerPage caps per_page
	MaxPerPage = 100
	// MaxPage is the highest page accepted, keeping the row offset within int32
	MaxPage = 1_000_000

	maxBodyBytes = 1 << 20
)

// Routes handles HTTP requests for the v1 API
type Routes struct {
	accessor entity.Accessor
	store    store.Store
	now      func() time.Time
}

// RoutesOption configures Routes
type RoutesOption func(*Routes)

// WithClock overrides the clock used for time-relative aggregates
func WithClock(now func() time.Time) RoutesOption {
	return func(r *Routes) {
		r.now = now
	}
}

// NewRoutes creates a new Routes instance
func NewRoutes(accessor entity.Accessor, st store.Store, opts ...RoutesOption) *Routes {
	routes := &Routes{
		accessor: accessor,
		store:    st,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(routes)
	}
	return routes
}

// Router creates and configures the HTTP router for the v1 API
func Router(accessor entity.Accessor, st store.Store, opts ...RoutesOption) http.Handler {
	routes := NewRoutes(accessor, st, opts...)

	r := chi.NewRouter()
	r.Get("/entities", routes.listEntities)

	for route, name := range model.Resources() {
		res := resource{routes: routes, entity: name}
		r.Route("/"+route, func(r chi.Router) {
			switch name {
			case model.EntityCampaign:
				r.Get("/{id}/teams", routes.campaignTeams)
			case model.EntityCanvasser:
				r.Get("/stats", routes.canvasserStats)
			}
			r.Get("/", res.list)
			r.Post("/", res.create)
			r.Get("/{id}", res.get)
			r.Put("/{id}", res.update)
			r.Patch("/{id}", res.update)
			r.Delete("/{id}", res.delete)
		})
	}

	return r
}

// table resolves a built table through the accessor, writing a 500 when the
// registry cannot serve it.
func (routes *Routes) table(w http.ResponseWriter, r *http.Request, name string) (*model.Table, bool) {
	t, err := entity.Lookup[*model.Table](routes.accessor, name)
	if err != nil {
		slog.ErrorContext(r.Context(), "Entity unavailable", "entity", name, "error", err)
		common.WriteErrorResponse(w, fmt.Sprintf("entity %s is unavailable", name), http.StatusInternalServerError)
		return nil, false
	}
	return t, true
}

// resource serves the CRUD endpoints of one catalog table
type resource struct {
	routes *Routes
	entity string
}

// list handles GET /api/v1/{resource}
func (res resource) list(w http.ResponseWriter, r *http.Request) {
	t, ok := res.routes.table(w, r, res.entity)
	if !ok {
		return
	}

	page, err := common.IntQuery(r, "page", 1)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if page > MaxPage {
		common.WriteErrorResponse(w, fmt.Sprintf("invalid page parameter: must not exceed %d", MaxPage), http.StatusBadRequest)
		return
	}
	perPage, err := common.IntQuery(r, "per_page", DefaultPerPage)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	perPage = min(perPage, MaxPerPage)

	conds, err := conditions(t, r)
	if err != nil {
		writeInputError(w, err)
		return
	}

	total, err := res.routes.store.Count(r.Context(), t, conds)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	records, err := res.routes.store.List(r.Context(), t, store.Query{
		Conditions: conds,
		Limit:      perPage,
		Offset:     (page - 1) * perPage,
	})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if records == nil {
		records = []store.Record{}
	}

	common.WriteJSONResponse(w, ListResponse{
		Data: records,
		Meta: ListMeta{
			Page:       page,
			PerPage:    perPage,
			TotalItems: total,
			TotalPages: (total + perPage - 1) / perPage,
		},
	}, http.StatusOK)
}

// create handles POST /api/v1/{resource}
func (res resource) create(w http.ResponseWriter, r *http.Request) {
	t, ok := res.routes.table(w, r, res.entity)
	if !ok {
		return
	}

	values, ok := decodeBody(w, r, t, false)
	if !ok {
		return
	}

	record, err := res.routes.store.Create(r.Context(), t, values)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	slog.DebugContext(r.Context(), "Record created", "entity", res.entity, "id", record[model.PrimaryKey])
	common.WriteJSONResponse(w, DataResponse{Data: record}, http.StatusCreated)
}

// get handles GET /api/v1/{resource}/{id}
func (res resource) get(w http.ResponseWriter, r *http.Request) {
	t, ok := res.routes.table(w, r, res.entity)
	if !ok {
		return
	}

	id, err := common.IDParam(r, "id")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	record, err := res.routes.store.Get(r.Context(), t, id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	common.WriteJSONResponse(w, DataResponse{Data: record}, http.StatusOK)
}

// update handles PUT and PATCH /api/v1/{resource}/{id}. Both are partial:
// only the fields present in the body change.
func (res resource) update(w http.ResponseWriter, r *http.Request) {
	t, ok := res.routes.table(w, r, res.entity)
	if !ok {
		return
	}

	id, err := common.IDParam(r, "id")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	values, ok := decodeBody(w, r, t, true)
	if !ok {
		return
	}
	if len(values) == 0 {
		common.WriteErrorResponse(w, "request body contains no fields to update", http.StatusBadRequest)
		return
	}

	record, err := res.routes.store.Update(r.Context(), t, id, values)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	common.WriteJSONResponse(w, DataResponse{Data: record}, http.StatusOK)
}

// delete handles DELETE /api/v1/{resource}/{id}
func (res resource) delete(w http.ResponseWriter, r *http.Request) {
	t, ok := res.routes.table(w, r, res.entity)
	if !ok {
		return
	}

	id, err := common.IDParam(r, "id")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := res.routes.store.Delete(r.Context(), t, id); err != nil {
		writeStoreError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// conditions turns the query string into store conditions. Parameters other
// than page and per_page must name a filter of the table.
func conditions(t *model.Table, r *http.Request) ([]store.Condition, error) {
	var conds []store.Condition
	for param, values := range r.URL.Query() {
		if param == "page" || param == "per_page" {
			continue
		}
		f, ok := t.Filter(param)
		if !ok {
			return nil, &model.FieldError{Field: param, Reason: "unknown filter parameter"}
		}
		col, _ := t.Column(f.Column)
		v, err := col.ParseParam(values[0])
		if err != nil {
			// report the parameter name, not the column behind it
			var fe *model.FieldError
			if errors.As(err, &fe) {
				return nil, &model.FieldError{Field: param, Reason: fe.Reason}
			}
			return nil, err
		}
		conds = append(conds, store.Condition{Column: f.Column, Op: f.Op, Value: v})
	}
	return conds, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, t *model.Table, partial bool) (store.Record, bool) {
	var body map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil || body == nil {
		common.WriteErrorResponse(w, "request body must be a JSON object", http.StatusBadRequest)
		return nil, false
	}

	values, err := t.DecodeInput(body, partial)
	if err != nil {
		writeInputError(w, err)
		return nil, false
	}
	return values, true
}

func writeInputError(w http.ResponseWriter, err error) {
	var fe *model.FieldError
	if errors.As(err, &fe) {
		common.WriteErrorDetails(w, "validation failed", map[string]string{fe.Field: fe.Reason}, http.StatusBadRequest)
		return
	}
	common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
}

// writeStoreError maps store sentinels onto HTTP status codes
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidInput):
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrNotFound):
		common.WriteErrorResponse(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, store.ErrConflict):
		common.WriteErrorResponse(w, err.Error(), http.StatusConflict)
	case errors.Is(err, store.ErrIntegrity):
		common.WriteErrorResponse(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		slog.ErrorContext(r.Context(), "Store operation failed", "path", r.URL.Path, "error", err)
		common.WriteErrorResponse(w, "internal server error", http.StatusInternalServerError)
	}
}
