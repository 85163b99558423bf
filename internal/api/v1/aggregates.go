package v1

import (
	"net/http"
	"time"

	"github.com/civicstack/campaign-server/internal/api/common"
	"github.com/civicstack/campaign-server/internal/entity"
	"github.com/civicstack/campaign-server/internal/model"
	"github.com/civicstack/campaign-server/internal/store"
)

// listEntities handles GET /api/v1/entities. Definitions are listed in
// build order; table descriptors are included once initialization completed.
func (routes *Routes) listEntities(w http.ResponseWriter, _ *http.Request) {
	state := routes.accessor.State()
	defs := model.Definitions()

	entries := make([]CatalogEntry, 0, len(defs))
	for _, def := range defs {
		entry := CatalogEntry{Name: def.Name, DependsOn: append([]string{}, def.DependsOn...)}
		if state == entity.Completed {
			if t, err := entity.Lookup[*model.Table](routes.accessor, def.Name); err == nil {
				entry.Table = t
			}
		}
		entries = append(entries, entry)
	}

	common.WriteJSONResponse(w, DataResponse{Data: CatalogResponse{State: state, Entities: entries}}, http.StatusOK)
}

// campaignTeams handles GET /api/v1/campaigns/{id}/teams
func (routes *Routes) campaignTeams(w http.ResponseWriter, r *http.Request) {
	campaigns, ok := routes.table(w, r, model.EntityCampaign)
	if !ok {
		return
	}
	teams, ok := routes.table(w, r, model.EntityCampaignTeam)
	if !ok {
		return
	}

	id, err := common.IDParam(r, "id")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := routes.store.Get(r.Context(), campaigns, id); err != nil {
		writeStoreError(w, r, err)
		return
	}

	records, err := routes.store.List(r.Context(), teams, store.Query{
		Conditions: []store.Condition{{Column: "campaign_id", Op: model.OpEq, Value: id}},
	})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if records == nil {
		records = []store.Record{}
	}

	common.WriteJSONResponse(w, DataResponse{Data: records}, http.StatusOK)
}

// canvasserStats handles GET /api/v1/canvassers/stats. Recent contacts are
// those since midnight UTC.
func (routes *Routes) canvasserStats(w http.ResponseWriter, r *http.Request) {
	canvassers, ok := routes.table(w, r, model.EntityCanvasser)
	if !ok {
		return
	}
	ctx := r.Context()

	total, err := routes.store.Count(ctx, canvassers, nil)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	breakdown := make(map[string]int, len(model.Intentions))
	for _, intention := range model.Intentions {
		n, err := routes.store.Count(ctx, canvassers, []store.Condition{
			{Column: "current_intention", Op: model.OpEq, Value: intention},
		})
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		breakdown[intention] = n
	}

	midnight := routes.now().UTC().Truncate(24 * time.Hour)
	recent, err := routes.store.Count(ctx, canvassers, []store.Condition{
		{Column: "last_contact_date", Op: model.OpGte, Value: midnight},
	})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	common.WriteJSONResponse(w, DataResponse{Data: CanvasserStats{
		TotalCanvassers:    total,
		IntentionBreakdown: breakdown,
		RecentContacts:     recent,
	}}, http.StatusOK)
}
