package db

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/civicstack/campaign-server/internal/config"
	"github.com/civicstack/campaign-server/internal/model"
)

// Dialect is the SQL flavour of a connection
type Dialect string

const (
	// Postgres is PostgreSQL accessed through the pgx stdlib driver
	Postgres Dialect = config.DriverPostgres
	// SQLite is SQLite accessed through go-sqlite3
	SQLite Dialect = config.DriverSQLite
)

// DialectFor returns the dialect of a configured driver
func DialectFor(driver string) (Dialect, error) {
	switch Dialect(driver) {
	case Postgres, SQLite:
		return Dialect(driver), nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// DriverName returns the database/sql driver registered for the dialect
func (d Dialect) DriverName() string {
	if d == SQLite {
		return "sqlite3"
	}
	return "pgx"
}

// LikeOperator returns the case-insensitive pattern match operator
func (d Dialect) LikeOperator() string {
	if d == SQLite {
		// LIKE is case-insensitive for ASCII in SQLite
		return "LIKE"
	}
	return "ILIKE"
}

// Quote quotes an identifier. Both dialects accept double quoted identifiers.
func Quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = Quote(n)
	}
	return strings.Join(quoted, ", ")
}

func (d Dialect) columnType(c model.Column) string {
	if c.PrimaryKey {
		if d == SQLite {
			return "INTEGER PRIMARY KEY AUTOINCREMENT"
		}
		return "BIGSERIAL PRIMARY KEY"
	}

	switch c.Kind {
	case model.Integer:
		if d == SQLite {
			return "INTEGER"
		}
		return "BIGINT"
	case model.String:
		return fmt.Sprintf("VARCHAR(%d)", c.Size)
	case model.Enum:
		longest := 1
		for _, v := range c.Values {
			longest = max(longest, len(v))
		}
		return fmt.Sprintf("VARCHAR(%d)", longest)
	case model.Date:
		return "DATE"
	case model.DateTime:
		if d == SQLite {
			return "TIMESTAMP"
		}
		return "TIMESTAMPTZ"
	case model.Numeric:
		return fmt.Sprintf("NUMERIC(%d,%d)", c.Precision, c.Scale)
	case model.Boolean:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

func literal(v any) string {
	switch val := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprint(val)
	}
}
