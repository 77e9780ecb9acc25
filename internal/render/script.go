package render

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"refill/internal/plan"
)

// internalColumnPrefix marks database-generated columns that must never
// appear in emitted column or value lists.
const internalColumnPrefix = "crdb_internal_"

// Header carries the identifying comments written at the top of a script.
type Header struct {
	Subject     string
	Label       string
	GeneratedAt time.Time
}

// WriteScript renders the final statement buffer as an executable mutation
// script: header comments, BEGIN, statements grouped per table with a row
// count banner, and a closing ROLLBACK. The operator flips ROLLBACK to COMMIT
// deliberately; the default outcome is reversible.
func WriteScript(w io.Writer, hdr Header, b *plan.Buffer) error {
	var sb strings.Builder

	sb.WriteString("-- Cascade restoration script\n")
	if hdr.Subject != "" {
		fmt.Fprintf(&sb, "-- Subject: %s\n", hdr.Subject)
	}
	if hdr.Label != "" {
		fmt.Fprintf(&sb, "-- Label: %s\n", hdr.Label)
	}
	fmt.Fprintf(&sb, "-- Generated at: %s\n", hdr.GeneratedAt.Format(time.RFC3339))
	sb.WriteString("--\n")
	sb.WriteString("-- Review the statements below, then change ROLLBACK to COMMIT to apply.\n")
	sb.WriteString("\nBEGIN;\n")

	for _, group := range groupByTable(b.Statements()) {
		inserts := 0
		for _, s := range group.stmts {
			if s.Kind == plan.Insert {
				inserts++
			}
		}
		fmt.Fprintf(&sb, "\n-- %s: %d records\n", group.table, inserts)
		for _, s := range group.stmts {
			sb.WriteString(Statement(s))
			sb.WriteByte('\n')
		}
	}

	sb.WriteString("\nROLLBACK;\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// Statement renders one statement as terminated SQL text. Columns carrying
// the internal prefix are filtered from both the column and value lists.
func Statement(s *plan.Statement) string {
	switch s.Kind {
	case plan.Update:
		return renderUpdate(s)
	default:
		return renderInsert(s)
	}
}

func renderInsert(s *plan.Statement) string {
	var cols, vals []string
	for _, col := range s.Columns {
		if strings.HasPrefix(col, internalColumnPrefix) {
			continue
		}
		cols = append(cols, col)
		vals = append(vals, Literal(s.Values[col]))
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(s.Table)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(") VALUES (")
	sb.WriteString(strings.Join(vals, ", "))
	sb.WriteString(")")
	if s.OnConflict {
		sb.WriteString(" ON CONFLICT DO NOTHING")
	}
	sb.WriteString(";")
	return sb.String()
}

func renderUpdate(s *plan.Statement) string {
	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(s.Table)
	sb.WriteString(" SET ")
	sb.WriteString(joinAssignments(s.Sets, ", "))
	sb.WriteString(" WHERE ")
	sb.WriteString(joinAssignments(s.Where, " AND "))
	sb.WriteString(";")
	return sb.String()
}

func joinAssignments(m map[string]plan.Value, sep string) string {
	cols := make([]string, 0, len(m))
	for col := range m {
		if strings.HasPrefix(col, internalColumnPrefix) {
			continue
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	parts := make([]string, 0, len(cols))
	for _, col := range cols {
		parts = append(parts, col+" = "+Literal(m[col]))
	}
	return strings.Join(parts, sep)
}

type tableGroup struct {
	table string
	stmts []*plan.Statement
}

// groupByTable partitions statements by table, keeping tables in order of
// first appearance and statements in buffer order within each table.
func groupByTable(stmts []*plan.Statement) []tableGroup {
	index := make(map[string]int)
	var groups []tableGroup
	for _, s := range stmts {
		i, ok := index[s.Table]
		if !ok {
			i = len(groups)
			index[s.Table] = i
			groups = append(groups, tableGroup{table: s.Table})
		}
		groups[i].stmts = append(groups[i].stmts, s)
	}
	return groups
}
