// Package plan holds the structured representation of the mutations a
// restoration run schedules. Statements carry typed values; nothing here
// renders SQL text; that happens once, at the emission boundary.
package plan

import (
	"fmt"
	"strings"

	"refill/internal/catalog"
)

// Kind discriminates the two mutation shapes a run can emit.
type Kind string

const (
	Insert Kind = "INSERT"
	Update Kind = "UPDATE"
)

// Value is a typed literal destined for a statement. The column kind travels
// with the value so the renderer can decide quoting without re-consulting the
// catalog.
type Value struct {
	V    any
	Kind catalog.ColumnKind
}

// Statement is one scheduled mutation. INSERTs carry the ordered column list
// and a value per column; UPDATEs carry the deferred assignments plus the
// non-FK column values identifying the row.
type Statement struct {
	Kind       Kind
	Table      string
	Columns    []string
	Values     map[string]Value
	Sets       map[string]Value
	Where      map[string]Value
	OnConflict bool
	Optimized  bool
}

// Fingerprint is the dedup key for an INSERT: the table plus its full
// column-value tuple. Two rows rendering to the same tuple are the same row.
func (s *Statement) Fingerprint() string {
	var sb strings.Builder
	sb.WriteString(s.Table)
	for _, col := range s.Columns {
		sb.WriteByte('|')
		sb.WriteString(col)
		sb.WriteByte('=')
		fmt.Fprintf(&sb, "%v", s.Values[col].V)
	}
	return sb.String()
}

// Buffer is the append-mostly statement list built during discovery. It is
// mutated in place exactly twice after discovery (optimizer, then NULL-FK
// resolver) before rendering.
type Buffer struct {
	stmts []*Statement
}

func (b *Buffer) Append(stmts ...*Statement) {
	b.stmts = append(b.stmts, stmts...)
}

// Promote moves the statements appended at or after index from to the front
// of the buffer, preserving their relative order. Missing-parent discovery
// uses it so late-found parents are emitted before their dependents.
func (b *Buffer) Promote(from int) {
	if from <= 0 || from >= len(b.stmts) {
		return
	}
	tail := make([]*Statement, len(b.stmts)-from)
	copy(tail, b.stmts[from:])
	b.stmts = append(tail, b.stmts[:from]...)
}

func (b *Buffer) Len() int { return len(b.stmts) }

// Statements returns the backing slice; callers treat it as read-only.
func (b *Buffer) Statements() []*Statement { return b.stmts }

// Replace swaps the buffer contents for the given slice.
func (b *Buffer) Replace(stmts []*Statement) { b.stmts = stmts }

// Inserts returns only the INSERT statements, in buffer order.
func (b *Buffer) Inserts() []*Statement {
	var out []*Statement
	for _, s := range b.stmts {
		if s.Kind == Insert {
			out = append(out, s)
		}
	}
	return out
}

// HasInsertFor reports whether the buffer already schedules an INSERT into
// table whose value for column equals v (compared as rendered text).
func (b *Buffer) HasInsertFor(table, column string, v any) bool {
	want := fmt.Sprint(v)
	for _, s := range b.stmts {
		if s.Kind != Insert || s.Table != table {
			continue
		}
		if got, ok := s.Values[column]; ok && got.V != nil && fmt.Sprint(got.V) == want {
			return true
		}
	}
	return false
}
