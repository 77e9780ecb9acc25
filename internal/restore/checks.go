package restore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// valueExists reports whether the target has a row with column = v. Without a
// target connection, or on any query failure, the answer is no: a reference
// that cannot be verified is treated as unresolved.
func (e *Engine) valueExists(ctx context.Context, table, column string, v any) bool {
	if e.target == nil {
		return false
	}
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = $1 LIMIT 1", table, column)
	var one int
	err := e.target.QueryRowContext(ctx, query, v).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false
	case err != nil:
		e.printf("existence check on %s.%s failed: %v\n", table, column, err)
		return false
	}
	return true
}

// rowExists reports whether the target already holds this exact row, matched
// by primary key. An unknown primary key, a NULL key value, or a failed query
// all answer no.
func (e *Engine) rowExists(ctx context.Context, table string, meta *tableMeta, row map[string]any) bool {
	if e.target == nil || len(meta.pk) == 0 {
		return false
	}
	conds := make([]string, 0, len(meta.pk))
	args := make([]any, 0, len(meta.pk))
	for _, col := range meta.pk {
		v, ok := row[col]
		if !ok || v == nil {
			return false
		}
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)+1))
		args = append(args, v)
	}

	query := fmt.Sprintf("SELECT 1 FROM %s WHERE %s LIMIT 1", table, strings.Join(conds, " AND "))
	var one int
	err := e.target.QueryRowContext(ctx, query, args...).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false
	case err != nil:
		e.printf("row existence check on %s failed: %v\n", table, err)
		return false
	}
	return true
}

// violatesUniqueRule checks the row against every configured uniqueness rule
// for the table. A rule only fires when all of its columns carry non-NULL
// values and the target already has a row with that combination.
func (e *Engine) violatesUniqueRule(ctx context.Context, table string, row map[string]any) ([]string, bool) {
	if e.target == nil {
		return nil, false
	}
	for _, cols := range e.rules.UniqueFor(table) {
		conds := make([]string, 0, len(cols))
		args := make([]any, 0, len(cols))
		complete := true
		for _, col := range cols {
			v, ok := row[col]
			if !ok || v == nil {
				complete = false
				break
			}
			conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)+1))
			args = append(args, v)
		}
		if !complete {
			continue
		}

		query := fmt.Sprintf("SELECT 1 FROM %s WHERE %s LIMIT 1", table, strings.Join(conds, " AND "))
		var one int
		err := e.target.QueryRowContext(ctx, query, args...).Scan(&one)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			continue
		case err != nil:
			e.printf("uniqueness check on %s failed: %v\n", table, err)
			continue
		}
		return cols, true
	}
	return nil, false
}

func joinColumns(cols []string) string { return strings.Join(cols, ", ") }
