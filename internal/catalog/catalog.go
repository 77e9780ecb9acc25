package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
)

// temporalTypes are the catalog data types whose literals must always be
// rendered quoted.
var temporalTypes = map[string]bool{
	"timestamp":                   true,
	"timestamptz":                 true,
	"date":                        true,
	"time":                        true,
	"timetz":                      true,
	"timestamp without time zone": true,
	"timestamp with time zone":    true,
	"time without time zone":      true,
	"time with time zone":         true,
}

// binaryTypes are the catalog data types normalized to base64 text.
var binaryTypes = map[string]bool{
	"bytea": true,
	"blob":  true,
}

// Introspector reads catalog metadata from one database connection. A single
// table's introspection failure never aborts the caller; it is logged and the
// table simply contributes nothing.
type Introspector struct {
	db  *sql.DB
	out io.Writer
}

// NewIntrospector wraps a connection. Progress and degradation notes go to
// out; pass io.Discard to silence them.
func NewIntrospector(db *sql.DB, out io.Writer) *Introspector {
	if out == nil {
		out = io.Discard
	}
	return &Introspector{db: db, out: out}
}

func (in *Introspector) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(in.out, format, args...)
}

// ListTables returns every base table in the database, ordered by schema and
// name.
func (in *Introspector) ListTables(ctx context.Context) ([]Table, error) {
	const query = `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		ORDER BY table_schema, table_name`

	rows, err := in.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.Schema, &t.Name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// ForeignKeys returns the table's foreign-key constraints parsed from SHOW
// CONSTRAINTS details text. In CascadeOnly mode, constraints without ON
// DELETE CASCADE are filtered out. Parse failures degrade to Unknown fields.
func (in *Introspector) ForeignKeys(ctx context.Context, table Table, mode Mode) ([]ForeignKey, error) {
	constraints, err := in.showConstraints(ctx, table)
	if err != nil {
		return nil, err
	}

	var fks []ForeignKey
	for _, c := range constraints {
		if !strings.EqualFold(c.kind, "FOREIGN KEY") {
			continue
		}
		local, refTable, refCols, rule := ParseForeignKey(c.details)
		if mode == CascadeOnly && rule != DeleteCascade {
			continue
		}
		// Details print the referenced table unqualified when it lives in
		// the child's own schema.
		if refTable != Unknown && !strings.Contains(refTable, ".") {
			refTable = table.Schema + "." + refTable
		}
		fks = append(fks, ForeignKey{
			Constraint:   c.name,
			Table:        table.FullName(),
			LocalColumns: local,
			RefTable:     refTable,
			RefColumns:   refCols,
			DeleteRule:   rule,
		})
	}
	return fks, nil
}

// PrimaryKey returns the table's ordered primary-key column list, or nil when
// it cannot be determined. Callers must treat nil as "cannot verify
// existence".
func (in *Introspector) PrimaryKey(ctx context.Context, table Table) []string {
	constraints, err := in.showConstraints(ctx, table)
	if err != nil {
		in.printf("primary key lookup for %s failed: %v\n", table.FullName(), err)
		return nil
	}
	for _, c := range constraints {
		if !strings.EqualFold(c.kind, "PRIMARY KEY") {
			continue
		}
		if cols := ParsePrimaryKey(c.details); cols != nil {
			return cols
		}
		in.printf("primary key definition for %s did not parse: %q\n", table.FullName(), c.details)
	}
	return nil
}

// Columns returns the table's columns in ordinal position with their kind
// tags.
func (in *Introspector) Columns(ctx context.Context, table Table) ([]Column, error) {
	const query = `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`

	rows, err := in.db.QueryContext(ctx, query, table.Schema, table.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns of %s: %w", table.FullName(), err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table.FullName(), err)
		}
		cols = append(cols, Column{Name: name, Kind: kindOf(dataType)})
	}
	return cols, rows.Err()
}

// AllForeignKeys returns every foreign key of the table from the standard
// information-schema views, one single-column constraint per row. The
// cascade-only SHOW CONSTRAINTS path misses non-cascade references; callers
// merge both.
func (in *Introspector) AllForeignKeys(ctx context.Context, table Table) (map[string]ForeignKey, error) {
	const query = `
		SELECT
			kcu.column_name AS local_column,
			ccu.table_schema || '.' || ccu.table_name AS referenced_table,
			ccu.column_name AS referenced_column
		FROM information_schema.table_constraints AS tc
		JOIN information_schema.key_column_usage AS kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage AS ccu
		  ON ccu.constraint_name = tc.constraint_name
		 AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema = $1
		  AND tc.table_name = $2`

	rows, err := in.db.QueryContext(ctx, query, table.Schema, table.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list foreign keys of %s: %w", table.FullName(), err)
	}
	defer rows.Close()

	fks := make(map[string]ForeignKey)
	for rows.Next() {
		var local, refTable, refCol string
		if err := rows.Scan(&local, &refTable, &refCol); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key of %s: %w", table.FullName(), err)
		}
		fks[local] = ForeignKey{
			Table:        table.FullName(),
			LocalColumns: []string{local},
			RefTable:     refTable,
			RefColumns:   []string{refCol},
			DeleteRule:   DeleteOther,
		}
	}
	return fks, rows.Err()
}

type rawConstraint struct {
	name    string
	kind    string
	details string
}

// showConstraints runs SHOW CONSTRAINTS and picks out the name, type, and
// details columns by header, since the exact column set varies across server
// versions.
func (in *Introspector) showConstraints(ctx context.Context, table Table) ([]rawConstraint, error) {
	rows, err := in.db.QueryContext(ctx, fmt.Sprintf("SHOW CONSTRAINTS FROM %s", table.FullName()))
	if err != nil {
		return nil, fmt.Errorf("SHOW CONSTRAINTS FROM %s: %w", table.FullName(), err)
	}
	defer rows.Close()

	headers, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []rawConstraint
	for rows.Next() {
		values := make([]any, len(headers))
		ptrs := make([]any, len(headers))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan constraint of %s: %w", table.FullName(), err)
		}

		var c rawConstraint
		for i, h := range headers {
			switch h {
			case "constraint_name":
				c.name = asString(values[i])
			case "constraint_type":
				c.kind = asString(values[i])
			case "details":
				c.details = asString(values[i])
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(s)
	}
}

func kindOf(dataType string) ColumnKind {
	dt := strings.ToLower(strings.TrimSpace(dataType))
	switch {
	case temporalTypes[dt]:
		return KindTemporal
	case binaryTypes[dt]:
		return KindBinary
	default:
		return KindScalar
	}
}
