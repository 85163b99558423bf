// Package model declares the campaign domain tables and the entity catalog
// that builds them in dependency order.
package model

import (
	"github.com/civicstack/campaign-server/internal/entity"
)

// PrimaryKey is the name of every table's primary key column
const PrimaryKey = "id"

// FilterOp is the comparison a list filter applies
type FilterOp string

const (
	// OpEq matches equal values
	OpEq FilterOp = "eq"
	// OpGte matches values greater than or equal to the parameter
	OpGte FilterOp = "gte"
	// OpLte matches values less than or equal to the parameter
	OpLte FilterOp = "lte"
	// OpContains matches values containing the parameter, case-insensitively
	OpContains FilterOp = "contains"
)

// Filter binds a list query parameter to a column comparison
type Filter struct {
	Param  string   `json:"param"`
	Column string   `json:"column"`
	Op     FilterOp `json:"op"`
}

// ChangeTracking records the prior value of Column into Previous, and the
// time of the change into ChangedAt, whenever an update changes Column.
type ChangeTracking struct {
	Column    string `json:"column"`
	Previous  string `json:"previous,omitempty"`
	ChangedAt string `json:"changed_at,omitempty"`
}

// Table is the built entity of the campaign catalog: a mapped table descriptor.
type Table struct {
	Entity         string                `json:"entity"`
	Name           string                `json:"table"`
	Route          string                `json:"route"`
	Columns        []Column              `json:"columns"`
	Relations      []entity.Relationship `json:"-"`
	UniqueTogether [][]string            `json:"unique_together,omitempty"`
	Filters        []Filter              `json:"filters,omitempty"`
	StatusColumn   string                `json:"status_column,omitempty"`
	Tracking       []ChangeTracking      `json:"change_tracking,omitempty"`
}

// EntityName implements entity.Entity
func (t *Table) EntityName() string {
	return t.Entity
}

// Relationships implements entity.Relater
func (t *Table) Relationships() []entity.Relationship {
	return t.Relations
}

// Column returns the named column
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns every column name in declared order
func (t *Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	return names
}

// Filter returns the filter bound to a query parameter. Every foreign key
// column and the status column can be filtered by equality under their own
// name.
func (t *Table) Filter(param string) (Filter, bool) {
	for _, f := range t.Filters {
		if f.Param == param {
			return f, true
		}
	}
	if param == "status" && t.StatusColumn != "" {
		return Filter{Param: param, Column: t.StatusColumn, Op: OpEq}, true
	}
	if c, ok := t.Column(param); ok && c.References != nil {
		return Filter{Param: param, Column: c.Name, Op: OpEq}, true
	}
	return Filter{}, false
}

// DecodeInput validates a client payload against the writable columns and
// returns the decoded values. Unknown and read-only fields are rejected. When
// partial is false every required column without a default must be present.
func (t *Table) DecodeInput(body map[string]any, partial bool) (map[string]any, error) {
	values := make(map[string]any, len(body))
	for name, raw := range body {
		c, ok := t.Column(name)
		if !ok {
			return nil, &FieldError{Field: name, Reason: "unknown field"}
		}
		if !c.Writable() {
			return nil, &FieldError{Field: name, Reason: "read-only field"}
		}
		v, err := c.Decode(raw)
		if err != nil {
			return nil, err
		}
		values[name] = v
	}

	if !partial {
		for _, c := range t.Columns {
			if !c.Writable() || !c.Required || c.Default != nil {
				continue
			}
			if _, ok := values[c.Name]; !ok {
				return nil, &FieldError{Field: c.Name, Reason: "required field missing"}
			}
		}
	}
	return values, nil
}

// ReferencedEntities returns the entities this table holds foreign keys to
func (t *Table) ReferencedEntities() []string {
	var out []string
	for _, c := range t.Columns {
		if c.References != nil {
			out = append(out, c.References.Entity)
		}
	}
	return out
}
