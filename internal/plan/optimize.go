package plan

import (
	"fmt"
	"io"
)

// Optimize merges each INSERT with its companion deferred UPDATE when the
// UPDATE's identifying column values all match the INSERT's literals, folding
// the deferred assignments into the INSERT and dropping the UPDATE. Buffer
// order is preserved.
//
// An UPDATE left unmatched means its INSERT was dropped after the UPDATE was
// queued, which is an invariant violation. It is logged and kept in the buffer so a
// reviewer sees it rather than losing it silently.
func Optimize(b *Buffer, out io.Writer) {
	if out == nil {
		out = io.Discard
	}

	merged := make(map[*Statement]bool)
	for _, ins := range b.stmts {
		if ins.Kind != Insert {
			continue
		}
		for _, upd := range b.stmts {
			if upd.Kind != Update || upd.Table != ins.Table || merged[upd] {
				continue
			}
			if !rowMatches(ins, upd) {
				continue
			}
			for col, v := range upd.Sets {
				ins.Values[col] = v
			}
			ins.Optimized = true
			merged[upd] = true
			break
		}
	}

	kept := b.stmts[:0]
	for _, s := range b.stmts {
		if merged[s] {
			continue
		}
		if s.Kind == Update {
			_, _ = fmt.Fprintf(out, "invariant violation: unmatched deferred UPDATE on %s survived optimization\n", s.Table)
		}
		kept = append(kept, s)
	}
	b.stmts = kept
}

// rowMatches reports whether the UPDATE's WHERE values all equal the INSERT's
// literals for the same columns, i.e. both target the same row.
func rowMatches(ins, upd *Statement) bool {
	for col, want := range upd.Where {
		got, ok := ins.Values[col]
		if !ok || fmt.Sprint(got.V) != fmt.Sprint(want.V) {
			return false
		}
	}
	return len(upd.Where) > 0
}
