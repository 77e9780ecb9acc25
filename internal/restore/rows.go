package restore

import (
	"context"
	"database/sql"
)

// rowSet is a fully materialized query result. Column order is preserved so
// generated statements list columns the way the source table does.
type rowSet struct {
	columns []string
	rows    []map[string]any
}

func queryRows(ctx context.Context, db *sql.DB, query string, args ...any) (*rowSet, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	rs := &rowSet{columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		rs.rows = append(rs.rows, row)
	}
	return rs, rows.Err()
}
