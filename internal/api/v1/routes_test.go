package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/civicstack/campaign-server/internal/entity"
	entitymocks "github.com/civicstack/campaign-server/internal/entity/mocks"
	"github.com/civicstack/campaign-server/internal/model"
	"github.com/civicstack/campaign-server/internal/store"
	"github.com/civicstack/campaign-server/internal/store/mocks"
)

func newTestAccessor(t *testing.T) entity.Accessor {
	t.Helper()
	catalog, err := model.NewCatalog()
	require.NoError(t, err)
	registry := entity.NewRegistry()
	initializer, err := entity.NewInitializer(catalog, registry)
	require.NoError(t, err)
	require.NoError(t, initializer.Initialize(context.Background()))
	return entity.NewAccessor(registry)
}

func isTable(name string) gomock.Matcher {
	return gomock.Cond(func(t *model.Table) bool {
		return t != nil && t.Entity == name
	})
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

type errorBody struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestList_Pagination(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		query       string
		total       int
		wantLimit   int
		wantOffset  int
		wantPage    int
		wantPerPage int
		wantPages   int
	}{
		{
			name:        "defaults",
			total:       3,
			wantLimit:   DefaultPerPage,
			wantPage:    1,
			wantPerPage: DefaultPerPage,
			wantPages:   1,
		},
		{
			name:        "second page",
			query:       "?page=2&per_page=10",
			total:       25,
			wantLimit:   10,
			wantOffset:  10,
			wantPage:    2,
			wantPerPage: 10,
			wantPages:   3,
		},
		{
			name:        "last accepted page",
			query:       "?page=1000000&per_page=100",
			total:       5,
			wantLimit:   MaxPerPage,
			wantOffset:  (MaxPage - 1) * MaxPerPage,
			wantPage:    MaxPage,
			wantPerPage: MaxPerPage,
			wantPages:   1,
		},
		{
			name:        "per_page clamped",
			query:       "?per_page=500",
			total:       0,
			wantLimit:   MaxPerPage,
			wantPage:    1,
			wantPerPage: MaxPerPage,
			wantPages:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			st := mocks.NewMockStore(ctrl)

			st.EXPECT().Count(gomock.Any(), isTable(model.EntityVolunteer), gomock.Nil()).Return(tt.total, nil)
			st.EXPECT().List(gomock.Any(), isTable(model.EntityVolunteer), store.Query{
				Limit:  tt.wantLimit,
				Offset: tt.wantOffset,
			}).Return([]store.Record{{"id": int64(1), "name": "Ada"}}, nil)

			rr := doRequest(t, Router(newTestAccessor(t), st), http.MethodGet, "/volunteers"+tt.query, "")
			require.Equal(t, http.StatusOK, rr.Code)

			var body struct {
				Data []map[string]any `json:"data"`
				Meta ListMeta         `json:"meta"`
			}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Len(t, body.Data, 1)
			assert.Equal(t, ListMeta{
				Page:       tt.wantPage,
				PerPage:    tt.wantPerPage,
				TotalItems: tt.total,
				TotalPages: tt.wantPages,
			}, body.Meta)
		})
	}
}

func TestList_EmptyIsArray(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)

	st.EXPECT().Count(gomock.Any(), gomock.Any(), gomock.Any()).Return(0, nil)
	st.EXPECT().List(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)

	rr := doRequest(t, Router(newTestAccessor(t), st), http.MethodGet, "/addresses", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"data":[],"meta":{"page":1,"per_page":25,"total_items":0,"total_pages":0}}`, rr.Body.String())
}

func TestList_Filters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		route string
		query string
		want  store.Condition
	}{
		{
			name:  "declared equality filter",
			route: "citizens",
			query: "constituency=North",
			want:  store.Condition{Column: "constituency", Op: model.OpEq, Value: "North"},
		},
		{
			name:  "contains filter",
			route: "citizens",
			query: "name=ada",
			want:  store.Condition{Column: "name", Op: model.OpContains, Value: "ada"},
		},
		{
			name:  "foreign key filter",
			route: "citizens",
			query: "address_id=4",
			want:  store.Condition{Column: "address_id", Op: model.OpEq, Value: int64(4)},
		},
		{
			name:  "date range filter",
			route: "campaigns",
			query: "start_after=2024-03-01",
			want: store.Condition{
				Column: "start_date",
				Op:     model.OpGte,
				Value:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			st := mocks.NewMockStore(ctrl)

			conds := []store.Condition{tt.want}
			st.EXPECT().Count(gomock.Any(), gomock.Any(), conds).Return(1, nil)
			st.EXPECT().List(gomock.Any(), gomock.Any(), store.Query{
				Conditions: conds,
				Limit:      DefaultPerPage,
			}).Return([]store.Record{{"id": int64(1)}}, nil)

			rr := doRequest(t, Router(newTestAccessor(t), st), http.MethodGet, "/"+tt.route+"?"+tt.query, "")
			assert.Equal(t, http.StatusOK, rr.Code)
		})
	}
}

func TestList_BadQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		query       string
		wantError   string
		wantDetails map[string]string
	}{
		{
			name:        "unknown filter",
			query:       "?favourite_colour=blue",
			wantError:   "validation failed",
			wantDetails: map[string]string{"favourite_colour": "unknown filter parameter"},
		},
		{
			name:        "unparsable filter value",
			query:       "?address_id=abc",
			wantError:   "validation failed",
			wantDetails: map[string]string{"address_id": "expected an integer"},
		},
		{
			name:      "zero page",
			query:     "?page=0",
			wantError: "invalid page parameter: must be a positive integer",
		},
		{
			name:      "page beyond limit",
			query:     "?page=9223372036854775807",
			wantError: "invalid page parameter: must not exceed 1000000",
		},
		{
			name:      "page overflowing int",
			query:     "?page=9223372036854775808",
			wantError: "invalid page parameter: must be a positive integer",
		},
		{
			name:      "non-numeric per_page",
			query:     "?per_page=lots",
			wantError: "invalid per_page parameter: must be a positive integer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			st := mocks.NewMockStore(ctrl)

			rr := doRequest(t, Router(newTestAccessor(t), st), http.MethodGet, "/citizens"+tt.query, "")
			require.Equal(t, http.StatusBadRequest, rr.Code)

			body := decodeError(t, rr)
			assert.Equal(t, tt.wantError, body.Error)
			if tt.wantDetails != nil {
				assert.Equal(t, tt.wantDetails, body.Details)
			}
		})
	}
}

func TestCreate(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)

	st.EXPECT().Create(gomock.Any(), isTable(model.EntityAddress), store.Record{
		"street":   "1 Main St",
		"city":     "Springfield",
		"state":    "IL",
		"zip_code": "62701",
	}).Return(store.Record{
		"id":       int64(9),
		"street":   "1 Main St",
		"city":     "Springfield",
		"state":    "IL",
		"zip_code": "62701",
	}, nil)

	rr := doRequest(t, Router(newTestAccessor(t), st), http.MethodPost, "/addresses",
		`{"street":"1 Main St","city":"Springfield","state":"IL","zip_code":"62701"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.JSONEq(t,
		`{"data":{"id":9,"street":"1 Main St","city":"Springfield","state":"IL","zip_code":"62701"}}`,
		rr.Body.String())
}

func TestCreate_InvalidBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		body        string
		wantError   string
		wantDetails map[string]string
	}{
		{
			name:      "not json",
			body:      `street=1`,
			wantError: "request body must be a JSON object",
		},
		{
			name:      "json array",
			body:      `[1,2]`,
			wantError: "request body must be a JSON object",
		},
		{
			name:        "missing required field",
			body:        `{"street":"1 Main St","city":"Springfield","state":"IL"}`,
			wantError:   "validation failed",
			wantDetails: map[string]string{"zip_code": "required field missing"},
		},
		{
			name:        "unknown field",
			body:        `{"street":"1 Main St","city":"Springfield","state":"IL","zip_code":"1","country":"US"}`,
			wantError:   "validation failed",
			wantDetails: map[string]string{"country": "unknown field"},
		},
		{
			name:        "read-only field",
			body:        `{"id":3,"street":"1 Main St","city":"Springfield","state":"IL","zip_code":"1"}`,
			wantError:   "validation failed",
			wantDetails: map[string]string{"id": "read-only field"},
		},
		{
			name:        "too long",
			body:        `{"street":"1 Main St","city":"Springfield","state":"Illinois","zip_code":"1"}`,
			wantError:   "validation failed",
			wantDetails: map[string]string{"state": "longer than 2 characters"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			st := mocks.NewMockStore(ctrl)

			rr := doRequest(t, Router(newTestAccessor(t), st), http.MethodPost, "/addresses", tt.body)
			require.Equal(t, http.StatusBadRequest, rr.Code)

			body := decodeError(t, rr)
			assert.Equal(t, tt.wantError, body.Error)
			if tt.wantDetails != nil {
				assert.Equal(t, tt.wantDetails, body.Details)
			}
		})
	}
}

func TestGet(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)

	st.EXPECT().Get(gomock.Any(), isTable(model.EntityDonation), int64(12)).
		Return(store.Record{"id": int64(12), "amount": "25.50"}, nil)

	rr := doRequest(t, Router(newTestAccessor(t), st), http.MethodGet, "/donations/12", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"data":{"id":12,"amount":"25.50"}}`, rr.Body.String())
}

func TestGet_BadID(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)

	for _, id := range []string{"abc", "0", "-4"} {
		rr := doRequest(t, Router(newTestAccessor(t), st), http.MethodGet, "/donations/"+id, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, id)
		assert.Equal(t, "id must be a positive integer", decodeError(t, rr).Error)
	}
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	for _, method := range []string{http.MethodPut, http.MethodPatch} {
		t.Run(method, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			st := mocks.NewMockStore(ctrl)

			st.EXPECT().Update(gomock.Any(), isTable(model.EntityVolunteer), int64(3),
				store.Record{"status": model.VolunteerInactive}).
				Return(store.Record{"id": int64(3), "status": model.VolunteerInactive}, nil)

			rr := doRequest(t, Router(newTestAccessor(t), st), method, "/volunteers/3", `{"status":"inactive"}`)
			require.Equal(t, http.StatusOK, rr.Code)
			assert.JSONEq(t, `{"data":{"id":3,"status":"inactive"}}`, rr.Body.String())
		})
	}
}

func TestUpdate_EmptyBody(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)

	rr := doRequest(t, Router(newTestAccessor(t), st), http.MethodPatch, "/volunteers/3", `{}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "request body contains no fields to update", decodeError(t, rr).Error)
}

func TestDelete(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)

	st.EXPECT().Delete(gomock.Any(), isTable(model.EntityEventStaffer), int64(5)).Return(nil)

	rr := doRequest(t, Router(newTestAccessor(t), st), http.MethodDelete, "/event-staffers/5", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
}

func TestStoreErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "not found",
			err:        fmt.Errorf("citizens 4: %w", store.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantError:  "citizens 4: record not found",
		},
		{
			name:       "conflict",
			err:        fmt.Errorf("email already used: %w", store.ErrConflict),
			wantStatus: http.StatusConflict,
			wantError:  "email already used: record conflicts with an existing record",
		},
		{
			name:       "integrity",
			err:        fmt.Errorf("address_id: %w", store.ErrIntegrity),
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "address_id: record violates data integrity",
		},
		{
			name:       "invalid input",
			err:        fmt.Errorf("column nickname: %w", store.ErrInvalidInput),
			wantStatus: http.StatusBadRequest,
			wantError:  "column nickname: invalid input",
		},
		{
			name:       "unexpected",
			err:        errors.New("connection reset by peer"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			st := mocks.NewMockStore(ctrl)

			st.EXPECT().Update(gomock.Any(), gomock.Any(), int64(4), gomock.Any()).Return(nil, tt.err)

			rr := doRequest(t, Router(newTestAccessor(t), st), http.MethodPut, "/citizens/4", `{"phone":"555-0100"}`)
			require.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantError, decodeError(t, rr).Error)
		})
	}
}

func TestEntityUnavailable(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	accessor := entitymocks.NewMockAccessor(ctrl)
	st := mocks.NewMockStore(ctrl)

	accessor.EXPECT().GetEntity(model.EntityVoter).
		Return(nil, &entity.NotInitializedError{Entity: model.EntityVoter, State: entity.Failed})

	rr := doRequest(t, Router(accessor, st), http.MethodGet, "/voters", "")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "entity Voter is unavailable", decodeError(t, rr).Error)
}

func TestCampaignTeams(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)

	gomock.InOrder(
		st.EXPECT().Get(gomock.Any(), isTable(model.EntityCampaign), int64(2)).
			Return(store.Record{"id": int64(2)}, nil),
		st.EXPECT().List(gomock.Any(), isTable(model.EntityCampaignTeam), store.Query{
			Conditions: []store.Condition{{Column: "campaign_id", Op: model.OpEq, Value: int64(2)}},
		}).Return([]store.Record{
			{"id": int64(1), "campaign_id": int64(2), "name": "North"},
			{"id": int64(3), "campaign_id": int64(2), "name": "South"},
		}, nil),
	)

	rr := doRequest(t, Router(newTestAccessor(t), st), http.MethodGet, "/campaigns/2/teams", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t,
		`{"data":[{"id":1,"campaign_id":2,"name":"North"},{"id":3,"campaign_id":2,"name":"South"}]}`,
		rr.Body.String())
}

func TestCampaignTeams_UnknownCampaign(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)

	st.EXPECT().Get(gomock.Any(), isTable(model.EntityCampaign), int64(8)).
		Return(nil, fmt.Errorf("campaigns 8: %w", store.ErrNotFound))

	rr := doRequest(t, Router(newTestAccessor(t), st), http.MethodGet, "/campaigns/8/teams", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCanvasserStats(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)

	now := time.Date(2024, 10, 3, 15, 4, 5, 0, time.UTC)
	midnight := time.Date(2024, 10, 3, 0, 0, 0, 0, time.UTC)
	canvassers := isTable(model.EntityCanvasser)

	st.EXPECT().Count(gomock.Any(), canvassers, gomock.Nil()).Return(10, nil)
	for i, intention := range model.Intentions {
		st.EXPECT().Count(gomock.Any(), canvassers, []store.Condition{
			{Column: "current_intention", Op: model.OpEq, Value: intention},
		}).Return(i, nil)
	}
	st.EXPECT().Count(gomock.Any(), canvassers, []store.Condition{
		{Column: "last_contact_date", Op: model.OpGte, Value: midnight},
	}).Return(4, nil)

	h := Router(newTestAccessor(t), st, WithClock(func() time.Time { return now }))
	rr := doRequest(t, h, http.MethodGet, "/canvassers/stats", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"data":{
		"total_canvassers": 10,
		"intention_breakdown": {"undecided":0,"for":1,"against":2,"leaning_for":3,"leaning_against":4},
		"recent_contacts": 4
	}}`, rr.Body.String())
}

func TestCanvasserStats_StoreFailure(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)

	st.EXPECT().Count(gomock.Any(), gomock.Any(), gomock.Any()).Return(0, errors.New("disk I/O error"))

	rr := doRequest(t, Router(newTestAccessor(t), st), http.MethodGet, "/canvassers/stats", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestListEntities(t *testing.T) {
	t.Parallel()

	t.Run("completed", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)

		rr := doRequest(t, Router(newTestAccessor(t), mocks.NewMockStore(ctrl)), http.MethodGet, "/entities", "")
		require.Equal(t, http.StatusOK, rr.Code)

		var body struct {
			Data struct {
				State    string `json:"state"`
				Entities []struct {
					Name      string          `json:"name"`
					DependsOn []string        `json:"depends_on"`
					Table     json.RawMessage `json:"table"`
				} `json:"entities"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "completed", body.Data.State)
		require.Len(t, body.Data.Entities, len(model.Definitions()))
		assert.Equal(t, model.EntityAddress, body.Data.Entities[0].Name)
		assert.Equal(t, []string{model.EntityAddress}, body.Data.Entities[1].DependsOn)
		for _, e := range body.Data.Entities {
			assert.NotEmpty(t, e.Table, e.Name)
		}
	})

	t.Run("not initialized", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		accessor := entitymocks.NewMockAccessor(ctrl)
		accessor.EXPECT().State().Return(entity.NotStarted)

		rr := doRequest(t, Router(accessor, mocks.NewMockStore(ctrl)), http.MethodGet, "/entities", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"state":"not_started"`)
		assert.NotContains(t, rr.Body.String(), `"table"`)
	})
}
