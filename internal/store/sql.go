package store

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/civicstack/campaign-server/internal/db"
	"github.com/civicstack/campaign-server/internal/model"
	"github.com/civicstack/campaign-server/internal/otel"
)

// TracerName is the name of the store tracer
const TracerName = "github.com/civicstack/campaign-server/internal/store"

// options holds configuration options for the SQL store
type options struct {
	tracer trace.Tracer
	now    func() time.Time
}

// Option is a functional option for configuring the SQL store
type Option func(*options) error

// WithTracer sets the OpenTelemetry tracer. If not set, tracing is disabled.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		o.tracer = tracer
		return nil
	}
}

// WithClock overrides the clock used for managed timestamps
func WithClock(now func() time.Time) Option {
	return func(o *options) error {
		if now == nil {
			return fmt.Errorf("clock cannot be nil")
		}
		o.now = now
		return nil
	}
}

type sqlStore struct {
	db      *sql.DB
	dialect db.Dialect
	tracer  trace.Tracer
	now     func() time.Time
}

var _ Store = (*sqlStore)(nil)

// New returns a Store backed by the given connection
func New(conn *db.Connection, opts ...Option) (Store, error) {
	if conn == nil || conn.DB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	o := &options{now: time.Now}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return &sqlStore{
		db:      conn.DB,
		dialect: conn.Dialect,
		tracer:  o.tracer,
		now:     o.now,
	}, nil
}

func (s *sqlStore) startSpan(ctx context.Context, name string, t *model.Table) (context.Context, trace.Span) {
	return otel.StartSpan(ctx, s.tracer, name, trace.WithAttributes(
		otel.DBSystem(string(s.dialect)),
		otel.AttrEntityName.String(t.Entity),
		otel.AttrTableName.String(t.Name),
	))
}

func (s *sqlStore) List(ctx context.Context, t *model.Table, q Query) (records []Record, err error) {
	ctx, span := s.startSpan(ctx, "store.List", t)
	defer func() {
		otel.RecordError(span, err)
		span.End()
	}()
	span.SetAttributes(otel.AttrPageSize.Int(q.Limit), otel.AttrPageOffset.Int(q.Offset))

	b := &builder{}
	where, err := s.where(t, q.Conditions, b)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		s.columnList(t), db.Quote(t.Name), where, db.Quote(model.PrimaryKey))
	if q.Limit > 0 {
		query += " LIMIT " + b.add(q.Limit)
		if q.Offset > 0 {
			query += " OFFSET " + b.add(q.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	records = []Record{}
	for rows.Next() {
		r, err := scanRecord(t, rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	span.SetAttributes(otel.AttrResultCount.Int(len(records)))
	return records, nil
}

func (s *sqlStore) Count(ctx context.Context, t *model.Table, conds []Condition) (count int, err error) {
	ctx, span := s.startSpan(ctx, "store.Count", t)
	defer func() {
		otel.RecordError(span, err)
		span.End()
	}()

	b := &builder{}
	where, err := s.where(t, conds, b)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", db.Quote(t.Name), where)
	if err := s.db.QueryRowContext(ctx, query, b.args...).Scan(&count); err != nil {
		return 0, classify(err)
	}
	return count, nil
}

func (s *sqlStore) Get(ctx context.Context, t *model.Table, id int64) (r Record, err error) {
	ctx, span := s.startSpan(ctx, "store.Get", t)
	defer func() {
		otel.RecordError(span, err)
		span.End()
	}()
	span.SetAttributes(otel.AttrRecordID.Int64(id))

	return s.get(ctx, s.db, t, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *sqlStore) get(ctx context.Context, q queryer, t *model.Table, id int64) (Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		s.columnList(t), db.Quote(t.Name), db.Quote(model.PrimaryKey))
	return scanRecord(t, q.QueryRowContext(ctx, query, id))
}

func (s *sqlStore) Create(ctx context.Context, t *model.Table, values Record) (r Record, err error) {
	ctx, span := s.startSpan(ctx, "store.Create", t)
	defer func() {
		otel.RecordError(span, err)
		span.End()
	}()

	values = s.withTimestamps(t, values, true)
	names, err := s.writableNames(t, values)
	if err != nil {
		return nil, err
	}

	b := &builder{}
	placeholders := make([]string, len(names))
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = db.Quote(name)
		placeholders[i] = b.add(values[name])
	}

	var query string
	if len(names) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING %s", db.Quote(t.Name), s.columnList(t))
	} else {
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
			db.Quote(t.Name), strings.Join(quoted, ", "), strings.Join(placeholders, ", "), s.columnList(t))
	}

	r, err = scanRecord(t, s.db.QueryRowContext(ctx, query, b.args...))
	if err != nil {
		return nil, err
	}
	span.SetAttributes(otel.AttrRecordID.Int64(recordID(r)))
	return r, nil
}

func (s *sqlStore) Update(ctx context.Context, t *model.Table, id int64, values Record) (r Record, err error) {
	ctx, span := s.startSpan(ctx, "store.Update", t)
	defer func() {
		otel.RecordError(span, err)
		span.End()
	}()
	span.SetAttributes(otel.AttrRecordID.Int64(id))

	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if len(t.Tracking) > 0 {
		current, err := s.get(ctx, tx, t, id)
		if err != nil {
			return nil, err
		}
		values = s.trackChanges(t, current, values)
	}

	values = s.withTimestamps(t, values, false)
	names, err := s.writableNames(t, values)
	if err != nil {
		return nil, err
	}

	b := &builder{}
	sets := make([]string, len(names))
	for i, name := range names {
		sets[i] = fmt.Sprintf("%s = %s", db.Quote(name), b.add(values[name]))
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s RETURNING %s",
		db.Quote(t.Name), strings.Join(sets, ", "), db.Quote(model.PrimaryKey), b.add(id), s.columnList(t))

	r, err = scanRecord(t, tx.QueryRowContext(ctx, query, b.args...))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, classify(err)
	}
	return r, nil
}

func (s *sqlStore) Delete(ctx context.Context, t *model.Table, id int64) (err error) {
	ctx, span := s.startSpan(ctx, "store.Delete", t)
	defer func() {
		otel.RecordError(span, err)
		span.End()
	}()
	span.SetAttributes(otel.AttrRecordID.Int64(id))

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", db.Quote(t.Name), db.Quote(model.PrimaryKey))
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// trackChanges fills the previous-value and changed-at columns of tracked
// columns whose value is changing, unless the client set them explicitly.
func (s *sqlStore) trackChanges(t *model.Table, current, values Record) Record {
	out := make(Record, len(values)+2)
	for k, v := range values {
		out[k] = v
	}
	for _, tr := range t.Tracking {
		next, ok := values[tr.Column]
		if !ok {
			continue
		}
		col, _ := t.Column(tr.Column)
		prev := current[tr.Column]
		if reflect.DeepEqual(prev, col.Normalize(next)) {
			continue
		}
		if _, set := values[tr.Previous]; tr.Previous != "" && !set {
			out[tr.Previous] = prev
		}
		if _, set := values[tr.ChangedAt]; tr.ChangedAt != "" && !set {
			out[tr.ChangedAt] = s.now().UTC()
		}
	}
	return out
}

func (s *sqlStore) withTimestamps(t *model.Table, values Record, create bool) Record {
	out := make(Record, len(values)+2)
	for k, v := range values {
		out[k] = v
	}
	now := s.now().UTC()
	for _, c := range t.Columns {
		switch {
		case c.Auto == model.AutoCreateUpdate:
			out[c.Name] = now
		case c.Auto == model.AutoCreate && create:
			out[c.Name] = now
		}
	}
	return out
}

// writableNames returns the sorted column names of values, rejecting names
// that are not columns of t.
func (*sqlStore) writableNames(t *model.Table, values Record) ([]string, error) {
	names := make([]string, 0, len(values))
	for name := range values {
		c, ok := t.Column(name)
		if !ok || c.PrimaryKey {
			return nil, fmt.Errorf("%w: %s is not a writable column of %s", ErrInvalidInput, name, t.Name)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *sqlStore) where(t *model.Table, conds []Condition, b *builder) (string, error) {
	if len(conds) == 0 {
		return "", nil
	}
	clauses := make([]string, 0, len(conds))
	for _, c := range conds {
		if _, ok := t.Column(c.Column); !ok {
			return "", fmt.Errorf("%w: %s is not a column of %s", ErrInvalidInput, c.Column, t.Name)
		}
		col := db.Quote(c.Column)
		switch c.Op {
		case model.OpEq:
			clauses = append(clauses, fmt.Sprintf("%s = %s", col, b.add(c.Value)))
		case model.OpGte:
			clauses = append(clauses, fmt.Sprintf("%s >= %s", col, b.add(c.Value)))
		case model.OpLte:
			clauses = append(clauses, fmt.Sprintf("%s <= %s", col, b.add(c.Value)))
		case model.OpContains:
			clauses = append(clauses, fmt.Sprintf("%s %s %s ESCAPE '\\'",
				col, s.dialect.LikeOperator(), b.add("%"+escapeLike(fmt.Sprint(c.Value))+"%")))
		default:
			return "", fmt.Errorf("%w: unsupported filter operator %q", ErrInvalidInput, c.Op)
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), nil
}

func (*sqlStore) columnList(t *model.Table) string {
	quoted := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		quoted[i] = db.Quote(c.Name)
	}
	return strings.Join(quoted, ", ")
}

// builder numbers placeholders in the order arguments are added, which keeps
// $n positions aligned with SQLite's parameter indexes.
type builder struct {
	args []any
}

func (b *builder) add(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(t *model.Table, row scanner) (Record, error) {
	raw := make([]any, len(t.Columns))
	ptrs := make([]any, len(t.Columns))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := row.Scan(ptrs...); err != nil {
		return nil, classify(err)
	}
	r := make(Record, len(t.Columns))
	for i, c := range t.Columns {
		r[c.Name] = c.Normalize(raw[i])
	}
	return r, nil
}

func recordID(r Record) int64 {
	id, _ := r[model.PrimaryKey].(int64)
	return id
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
