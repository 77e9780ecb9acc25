package plan

import (
	"fmt"
	"io"

	"refill/internal/graph"
)

// ResolveNullForeignKeys is the last pass over the buffer: any INSERT still
// holding NULL in a foreign-key column whose parent table also appears in the
// buffer gets the referenced-column value of the first parent row scheduled.
//
// This is a heuristic of last resort. It is only correct when a single
// plausible parent is being restored; every substitution is logged so the
// operator can audit the guess.
func ResolveNullForeignKeys(b *Buffer, g graph.Graph, out io.Writer) {
	if out == nil {
		out = io.Discard
	}

	// First scheduled INSERT per table, in buffer order.
	firstInsert := make(map[string]*Statement)
	for _, s := range b.stmts {
		if s.Kind != Insert {
			continue
		}
		if _, ok := firstInsert[s.Table]; !ok {
			firstInsert[s.Table] = s
		}
	}

	for _, s := range b.stmts {
		if s.Kind != Insert {
			continue
		}
		for _, col := range s.Columns {
			if s.Values[col].V != nil {
				continue
			}
			parent, refCol, ok := g.ParentOf(s.Table, col)
			if !ok {
				continue
			}
			parentRow, ok := firstInsert[parent]
			if !ok {
				continue
			}
			v, ok := parentRow.Values[refCol]
			if !ok || v.V == nil {
				continue
			}
			s.Values[col] = v
			_, _ = fmt.Fprintf(out, "resolved NULL foreign key: %s.%s -> %s.%s = %v\n",
				s.Table, col, parent, refCol, v.V)
		}
	}
}
