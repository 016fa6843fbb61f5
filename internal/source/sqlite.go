package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	oerrors "github.com/sqlobserver/sqlobserver/internal/errors"
	"github.com/sqlobserver/sqlobserver/pkg/types"
)

// SQLiteSource reads every row of one table of a SQLite database.
// Column order becomes record field order.
type SQLiteSource struct {
	db    *sql.DB
	path  string
	table string
}

// NewSQLiteSource opens the database read-only.
func NewSQLiteSource(path, table string) (*SQLiteSource, error) {
	if table == "" {
		return nil, oerrors.NewConfigError("sqlite source table is required")
	}
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite source: %w", err)
	}
	return &SQLiteSource{db: db, path: path, table: table}, nil
}

// Path returns the database file.
func (s *SQLiteSource) Path() string {
	return s.path
}

// Close closes the database.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// Fetch selects all rows of the table. Row order is whatever SQLite
// returns for an unordered scan.
func (s *SQLiteSource) Fetch(ctx context.Context) (types.Dataset, error) {
	query := fmt.Sprintf("SELECT * FROM %s", quoteIdent(s.table))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, oerrors.NewFetchError(oerrors.CodeFetchFailed, fmt.Sprintf("query table %s", s.table), err).WithRetryable(false)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, oerrors.FetchFailure("read columns", err)
	}

	ds := types.Dataset{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, oerrors.FetchFailure("scan row", err)
		}

		fields := make([]types.Field, len(columns))
		for i, col := range columns {
			fields[i] = types.Field{Name: col, Value: scalar(values[i])}
		}
		ds = append(ds, types.NewRecord(fields...))
	}
	if err := rows.Err(); err != nil {
		return nil, oerrors.FetchFailure("iterate rows", err)
	}
	return ds, nil
}

// scalar maps driver values onto the JSON scalar set: numbers become
// float64 and text becomes string.
func scalar(v interface{}) interface{} {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return x
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
