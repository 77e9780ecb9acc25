package restore

import (
	"context"
	"fmt"
)

// parentRef is one foreign-key value found in a scheduled INSERT.
type parentRef struct {
	table  string
	column string
	value  any
}

func (p parentRef) key() string {
	return p.table + "::" + p.column + "::" + fmt.Sprint(p.value)
}

// discoverMissingParents scans the scheduled INSERTs for foreign-key values
// that exist on the source but not on the target and have no INSERT of their
// own, then runs the matching source rows through the same pipeline and moves
// their statements to the front of the buffer. Returns the number of
// statements added.
func (e *Engine) discoverMissingParents(ctx context.Context) int {
	if e.target == nil {
		return 0
	}
	e.printf("checking for missing parent records...\n")

	var refs []parentRef
	seenRef := make(map[string]bool)
	for _, st := range e.buffer.Inserts() {
		meta, err := e.tableMeta(ctx, st.Table)
		if err != nil {
			continue
		}
		for _, col := range st.Columns {
			parent, ok := meta.fks[col]
			if !ok {
				continue
			}
			v := st.Values[col].V
			if v == nil {
				continue
			}
			ref := parentRef{table: parent.Table, column: parent.Column, value: v}
			if seenRef[ref.key()] {
				continue
			}
			seenRef[ref.key()] = true
			refs = append(refs, ref)
		}
	}

	// Both existence checks are memoized; the same parent value shows up in
	// many child rows.
	targetMemo := make(map[string]bool)
	sourceMemo := make(map[string]bool)
	added := 0
	for _, ref := range refs {
		if memoized(targetMemo, ref, func() bool { return e.valueExists(ctx, ref.table, ref.column, ref.value) }) {
			continue
		}
		if !memoized(sourceMemo, ref, func() bool { return e.sourceValueExists(ctx, ref.table, ref.column, ref.value) }) {
			continue
		}
		if e.buffer.HasInsertFor(ref.table, ref.column, ref.value) {
			continue
		}

		rs, err := queryRows(ctx, e.source,
			fmt.Sprintf("SELECT * FROM %s WHERE %s = $1", ref.table, ref.column), ref.value)
		if err != nil {
			e.printf("missing parent lookup on %s failed: %v\n", ref.table, err)
			continue
		}
		if len(rs.rows) == 0 {
			continue
		}

		e.printf("found missing parent in %s: %s = %v (%d records)\n", ref.table, ref.column, ref.value, len(rs.rows))
		mark := e.buffer.Len()
		e.processRows(ctx, ref.table, rs)
		produced := e.buffer.Len() - mark
		if produced > 0 {
			e.buffer.Promote(mark)
			added += produced
		}

		e.entries = append(e.entries, AffectedEntry{
			Table:     ref.table,
			Predicate: fmt.Sprintf("%s = '%v'", ref.column, ref.value),
			Level:     -1,
			Rows:      len(rs.rows),
		})
		e.levelTotals[-1] += len(rs.rows)
	}
	return added
}

// sourceValueExists mirrors valueExists against the source connection.
func (e *Engine) sourceValueExists(ctx context.Context, table, column string, v any) bool {
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = $1 LIMIT 1", table, column)
	var one int
	if err := e.source.QueryRowContext(ctx, query, v).Scan(&one); err != nil {
		return false
	}
	return true
}

func memoized(memo map[string]bool, ref parentRef, check func() bool) bool {
	if got, ok := memo[ref.key()]; ok {
		return got
	}
	got := check()
	memo[ref.key()] = got
	return got
}
