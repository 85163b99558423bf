package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/civicstack/campaign-server/internal/entity"
	"github.com/civicstack/campaign-server/internal/model"
)

// SchemaCreator creates the tables of built entities. Statements use
// IF NOT EXISTS so running it against an existing schema changes nothing.
type SchemaCreator struct {
	db      *sql.DB
	dialect Dialect
}

// NewSchemaCreator returns a schema creator for the connection
func NewSchemaCreator(conn *Connection) *SchemaCreator {
	return &SchemaCreator{db: conn.DB, dialect: conn.Dialect}
}

// CreateSchema implements entity.SchemaCreator. Tables are created in the
// order given, which is dependency order, inside a single transaction.
func (s *SchemaCreator) CreateSchema(ctx context.Context, entities []entity.Entity) error {
	tables, err := Tables(entities)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer func() {
		// no-op after commit
		_ = tx.Rollback()
	}()

	for _, t := range tables {
		for _, stmt := range s.dialect.TableStatements(t) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create table %s: %w", t.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}

	slog.InfoContext(ctx, "Database schema ensured", "dialect", string(s.dialect), "tables", len(tables))
	return nil
}

// Tables converts built entities to table descriptors, checking that every
// foreign key targets a table that comes earlier.
func Tables(entities []entity.Entity) ([]*model.Table, error) {
	seen := make(map[string]bool, len(entities))
	tables := make([]*model.Table, 0, len(entities))
	for _, e := range entities {
		t, ok := e.(*model.Table)
		if !ok {
			return nil, fmt.Errorf("entity %s is %T, not a table", e.EntityName(), e)
		}
		for _, c := range t.Columns {
			if c.References != nil && !seen[c.References.Table] && c.References.Table != t.Name {
				return nil, fmt.Errorf("table %s references %s before it is created", t.Name, c.References.Table)
			}
		}
		seen[t.Name] = true
		tables = append(tables, t)
	}
	return tables, nil
}

// Render returns the DDL for the given tables as a single script
func (d Dialect) Render(tables ...*model.Table) string {
	var stmts []string
	for _, t := range tables {
		stmts = append(stmts, d.TableStatements(t)...)
	}
	if len(stmts) == 0 {
		return ""
	}
	return strings.Join(stmts, ";\n\n") + ";\n"
}

// TableStatements returns the CREATE TABLE statement of a table followed by
// an index per foreign key column.
func (d Dialect) TableStatements(t *model.Table) []string {
	defs := make([]string, 0, len(t.Columns)+len(t.UniqueTogether))
	for _, c := range t.Columns {
		defs = append(defs, d.columnDefinition(c))
	}
	for _, cols := range t.UniqueTogether {
		defs = append(defs, fmt.Sprintf("UNIQUE (%s)", quoteList(cols)))
	}

	stmts := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)",
		Quote(t.Name), strings.Join(defs, ",\n    "))}

	for _, c := range t.Columns {
		if c.References == nil {
			continue
		}
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			Quote("idx_"+t.Name+"_"+c.Name), Quote(t.Name), Quote(c.Name)))
	}
	return stmts
}

func (d Dialect) columnDefinition(c model.Column) string {
	parts := []string{Quote(c.Name), d.columnType(c)}
	if c.PrimaryKey {
		return strings.Join(parts, " ")
	}

	if c.Required {
		parts = append(parts, "NOT NULL")
	}
	if c.Unique {
		parts = append(parts, "UNIQUE")
	}
	switch {
	case c.Default != nil:
		parts = append(parts, "DEFAULT "+literal(c.Default))
	case c.Auto != model.AutoNone:
		parts = append(parts, "DEFAULT CURRENT_TIMESTAMP")
	}
	if c.Kind == model.Enum {
		values := make([]string, len(c.Values))
		for i, v := range c.Values {
			values[i] = literal(v)
		}
		parts = append(parts, fmt.Sprintf("CHECK (%s IN (%s))", Quote(c.Name), strings.Join(values, ", ")))
	}
	if ref := c.References; ref != nil {
		parts = append(parts, fmt.Sprintf("REFERENCES %s (%s)", Quote(ref.Table), Quote(ref.Column)))
		if ref.OnDelete != "" {
			parts = append(parts, "ON DELETE "+ref.OnDelete)
		}
	}
	return strings.Join(parts, " ")
}
