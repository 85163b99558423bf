// Package store provides record persistence for campaign tables
package store

import (
	"context"
	"errors"

	"github.com/civicstack/campaign-server/internal/model"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a unique constraint
	ErrConflict = errors.New("record conflicts with an existing record")
	// ErrIntegrity is returned when a write violates a foreign key, not-null or check constraint
	ErrIntegrity = errors.New("record violates data integrity")
	// ErrInvalidInput is returned for values or columns the table does not accept
	ErrInvalidInput = errors.New("invalid input")
)

// Record is one row keyed by column name
type Record map[string]any

// Condition restricts a query to rows whose Column compares to Value with Op
type Condition struct {
	Column string
	Op     model.FilterOp
	Value  any
}

// Query selects a page of rows ordered by primary key
type Query struct {
	Conditions []Condition
	Limit      int
	Offset     int
}

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go Store

// Store persists records of campaign tables
type Store interface {
	// List returns the rows matching q ordered by id
	List(ctx context.Context, t *model.Table, q Query) ([]Record, error)

	// Count returns the number of rows matching conds
	Count(ctx context.Context, t *model.Table, conds []Condition) (int, error)

	// Get returns one row by id
	Get(ctx context.Context, t *model.Table, id int64) (Record, error)

	// Create inserts a row and returns it as stored
	Create(ctx context.Context, t *model.Table, values Record) (Record, error)

	// Update changes the given columns of a row and returns it as stored
	Update(ctx context.Context, t *model.Table, id int64, values Record) (Record, error)

	// Delete removes a row by id
	Delete(ctx context.Context, t *model.Table, id int64) error

	// Ping checks the underlying database
	Ping(ctx context.Context) error
}
