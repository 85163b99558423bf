package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/civicstack/campaign-server/internal/config"
	"github.com/civicstack/campaign-server/internal/db"
	"github.com/civicstack/campaign-server/internal/entity"
	"github.com/civicstack/campaign-server/internal/model"
)

var fixedNow = time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)

type fixture struct {
	store    Store
	accessor entity.Accessor
	spans    *tracetest.InMemoryExporter
}

func (f *fixture) table(t *testing.T, name string) *model.Table {
	t.Helper()
	table, err := entity.Lookup[*model.Table](f.accessor, name)
	require.NoError(t, err)
	return table
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	conn, err := db.Open(ctx, &config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "store.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	catalog, err := model.NewCatalog()
	require.NoError(t, err)
	registry := entity.NewRegistry()
	initializer, err := entity.NewInitializer(catalog, registry,
		entity.WithSchemaCreator(db.NewSchemaCreator(conn)))
	require.NoError(t, err)
	require.NoError(t, initializer.Initialize(ctx))

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	s, err := New(conn,
		WithTracer(tp.Tracer(TracerName)),
		WithClock(func() time.Time { return fixedNow }),
	)
	require.NoError(t, err)

	return &fixture{store: s, accessor: entity.NewAccessor(registry), spans: exporter}
}

func decode(t *testing.T, table *model.Table, body string, partial bool) Record {
	t.Helper()
	var raw map[string]any
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&raw))
	values, err := table.DecodeInput(raw, partial)
	require.NoError(t, err)
	return values
}

func TestSQLStore_CRUD(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	campaigns := f.table(t, model.EntityCampaign)

	created, err := f.store.Create(ctx, campaigns, decode(t, campaigns,
		`{"name": "Spring Drive", "description": "door knocking", "start_date": "2024-03-01", "end_date": "2024-05-01"}`, false))
	require.NoError(t, err)
	id := created["id"].(int64)
	assert.Positive(t, id)
	assert.Equal(t, "Spring Drive", created["name"])
	assert.Equal(t, "2024-03-01", created["start_date"])
	assert.Equal(t, "2024-06-01T12:30:00Z", created["created_at"])

	got, err := f.store.Get(ctx, campaigns, id)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	updated, err := f.store.Update(ctx, campaigns, id, decode(t, campaigns, `{"name": "Summer Drive"}`, true))
	require.NoError(t, err)
	assert.Equal(t, "Summer Drive", updated["name"])
	assert.Equal(t, "door knocking", updated["description"])

	require.NoError(t, f.store.Delete(ctx, campaigns, id))
	_, err = f.store.Get(ctx, campaigns, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.store.Delete(ctx, campaigns, id), ErrNotFound)

	_, err = f.store.Update(ctx, campaigns, id, Record{"name": "gone"})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NotEmpty(t, f.spans.GetSpans())
}

func TestSQLStore_ListFiltersAndPages(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	addresses := f.table(t, model.EntityAddress)

	for _, city := range []string{"Springfield", "Shelbyville", "Springfield", "Capital City", "Springfield"} {
		_, err := f.store.Create(ctx, addresses, Record{
			"street": "1 Main St", "city": city, "state": "IL", "zip_code": "62701",
		})
		require.NoError(t, err)
	}

	springfield := []Condition{{Column: "city", Op: model.OpEq, Value: "Springfield"}}
	count, err := f.store.Count(ctx, addresses, springfield)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	page, err := f.store.List(ctx, addresses, Query{Conditions: springfield, Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Less(t, page[0]["id"].(int64), page[1]["id"].(int64))

	all, err := f.store.List(ctx, addresses, Query{})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	contains, err := f.store.List(ctx, addresses, Query{Conditions: []Condition{
		{Column: "city", Op: model.OpContains, Value: "ville"},
	}})
	require.NoError(t, err)
	require.Len(t, contains, 1)
	assert.Equal(t, "Shelbyville", contains[0]["city"])

	wildcard, err := f.store.Count(ctx, addresses, []Condition{{Column: "city", Op: model.OpContains, Value: "%"}})
	require.NoError(t, err)
	assert.Zero(t, wildcard)

	_, err = f.store.List(ctx, addresses, Query{Conditions: []Condition{{Column: "nope", Op: model.OpEq, Value: 1}}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	empty, err := f.store.List(ctx, addresses, Query{Conditions: []Condition{{Column: "state", Op: model.OpEq, Value: "CA"}}})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestSQLStore_ConstraintErrors(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	citizens := f.table(t, model.EntityCitizen)

	citizen := Record{"name": "Lisa", "email": "lisa@example.org", "constituency": "North"}
	_, err := f.store.Create(ctx, citizens, citizen)
	require.NoError(t, err)

	_, err = f.store.Create(ctx, citizens, citizen)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.store.Create(ctx, citizens, Record{
		"name": "Bart", "email": "bart@example.org", "constituency": "North", "address_id": int64(999),
	})
	assert.ErrorIs(t, err, ErrIntegrity)

	_, err = f.store.Create(ctx, citizens, Record{"name": "Homer"})
	assert.ErrorIs(t, err, ErrIntegrity)

	_, err = f.store.Create(ctx, citizens, Record{"nickname": "Bart"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.store.Update(ctx, citizens, 1, Record{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSQLStore_TracksIntentionChanges(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	citizens := f.table(t, model.EntityCitizen)
	canvassers := f.table(t, model.EntityCanvasser)
	voters := f.table(t, model.EntityVoter)

	citizen, err := f.store.Create(ctx, citizens, Record{"name": "Marge", "email": "marge@example.org", "constituency": "South"})
	require.NoError(t, err)

	canvasser, err := f.store.Create(ctx, canvassers, Record{
		"citizen_id": citizen["id"], "current_intention": model.IntentionUndecided,
	})
	require.NoError(t, err)
	assert.Nil(t, canvasser["previous_intention"])

	updated, err := f.store.Update(ctx, canvassers, canvasser["id"].(int64), Record{"current_intention": model.IntentionFor})
	require.NoError(t, err)
	assert.Equal(t, model.IntentionFor, updated["current_intention"])
	assert.Equal(t, model.IntentionUndecided, updated["previous_intention"])

	// unchanged intention keeps the previous value
	same, err := f.store.Update(ctx, canvassers, canvasser["id"].(int64), Record{
		"current_intention": model.IntentionFor, "notes": "still for",
	})
	require.NoError(t, err)
	assert.Equal(t, model.IntentionUndecided, same["previous_intention"])

	voter, err := f.store.Create(ctx, voters, Record{"citizen_id": citizen["id"], "registration_date": fixedNow.AddDate(-1, 0, 0)})
	require.NoError(t, err)
	assert.Nil(t, voter["last_intention_change_date"])

	voter, err = f.store.Update(ctx, voters, voter["id"].(int64), Record{"last_known_vote_intention": "Neutral"})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01T12:30:00Z", voter["last_intention_change_date"])
}

func TestSQLStore_DefaultsApplied(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	campaigns := f.table(t, model.EntityCampaign)
	teams := f.table(t, model.EntityCampaignTeam)
	sessions := f.table(t, model.EntityCanvassingSession)

	campaign, err := f.store.Create(ctx, campaigns, Record{
		"name": "Fall", "start_date": fixedNow, "end_date": fixedNow.AddDate(0, 2, 0),
	})
	require.NoError(t, err)
	team, err := f.store.Create(ctx, teams, Record{"campaign_id": campaign["id"], "name": "North"})
	require.NoError(t, err)

	session, err := f.store.Create(ctx, sessions, Record{
		"campaign_id": campaign["id"], "assigned_staff": team["id"],
	})
	require.NoError(t, err)
	assert.Equal(t, model.TaskPending, session["task_status"])

	byStatus, err := f.store.Count(ctx, sessions, []Condition{{Column: "task_status", Op: model.OpEq, Value: model.TaskPending}})
	require.NoError(t, err)
	assert.Equal(t, 1, byStatus)
}

func TestSQLStore_NumericAmountsKeepScale(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	citizens := f.table(t, model.EntityCitizen)
	campaigns := f.table(t, model.EntityCampaign)
	donations := f.table(t, model.EntityDonation)

	citizen, err := f.store.Create(ctx, citizens, Record{"name": "Ned", "email": "ned@example.org", "constituency": "East"})
	require.NoError(t, err)
	campaign, err := f.store.Create(ctx, campaigns, Record{
		"name": "Winter", "start_date": fixedNow, "end_date": fixedNow.AddDate(0, 1, 0),
	})
	require.NoError(t, err)

	body := fmt.Sprintf(`{"citizen_id": %d, "campaign_id": %d, "amount": "19.90"}`, citizen["id"], campaign["id"])
	donation, err := f.store.Create(ctx, donations, decode(t, donations, body, false))
	require.NoError(t, err)
	assert.Equal(t, "19.90", donation["amount"])

	body = fmt.Sprintf(`{"citizen_id": %d, "campaign_id": %d, "amount": 1.005}`, citizen["id"], campaign["id"])
	rounded, err := f.store.Create(ctx, donations, decode(t, donations, body, false))
	require.NoError(t, err)
	assert.Equal(t, "1.01", rounded["amount"])

	got, err := f.store.Get(ctx, donations, donation["id"].(int64))
	require.NoError(t, err)
	assert.Equal(t, "19.90", got["amount"])

	n, err := f.store.Count(ctx, donations, []Condition{{Column: "amount", Op: model.OpGte, Value: "10.00"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(&db.Connection{})
	assert.Error(t, err)
}
