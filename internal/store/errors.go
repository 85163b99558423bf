package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// classify maps driver errors onto the store sentinels. Errors it does not
// recognise are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if kind := pgKind(pgErr.Code); kind != nil {
			return fmt.Errorf("%w: %s", kind, pgDetail(pgErr))
		}
		return err
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		if kind := sqliteKind(liteErr.ExtendedCode); kind != nil {
			return fmt.Errorf("%w: %s", kind, liteErr.Error())
		}
	}
	return err
}

func pgKind(code string) error {
	switch code {
	case pgerrcode.UniqueViolation, pgerrcode.ExclusionViolation:
		return ErrConflict
	case pgerrcode.ForeignKeyViolation, pgerrcode.NotNullViolation, pgerrcode.CheckViolation:
		return ErrIntegrity
	case pgerrcode.InvalidTextRepresentation,
		pgerrcode.InvalidDatetimeFormat,
		pgerrcode.DatetimeFieldOverflow,
		pgerrcode.NumericValueOutOfRange,
		pgerrcode.StringDataRightTruncationDataException:
		return ErrInvalidInput
	}
	return nil
}

func pgDetail(e *pgconn.PgError) string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Message
}

func sqliteKind(code sqlite3.ErrNoExtended) error {
	switch code {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return ErrConflict
	case sqlite3.ErrConstraintForeignKey, sqlite3.ErrConstraintNotNull, sqlite3.ErrConstraintCheck:
		return ErrIntegrity
	}
	return nil
}
