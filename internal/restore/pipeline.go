package restore

import (
	"context"
	"encoding/base64"

	"refill/internal/plan"
)

// processRows runs every row of a result set through the statement pipeline.
// Metadata failures cost only this batch.
func (e *Engine) processRows(ctx context.Context, table string, rs *rowSet) {
	meta, err := e.tableMeta(ctx, table)
	if err != nil {
		e.printf("skipping %d records of %s: %v\n", len(rs.rows), table, err)
		return
	}
	for _, row := range rs.rows {
		e.processRow(ctx, table, meta, row)
	}
}

// processRow turns one source row into an INSERT, plus a deferred UPDATE when
// any foreign key could not be resolved yet. Rows failing acceptance, rows
// the target already has, rows violating a uniqueness rule, and rows
// referencing a skipped parent are dropped; the last two kinds feed the skip
// registry so dependents are dropped too.
func (e *Engine) processRow(ctx context.Context, table string, meta *tableMeta, row map[string]any) {
	normalizeBinary(row)

	for _, col := range e.rules.RequiredFor(table) {
		if blank(row[col]) {
			e.printf("skipping %s record: required column %s is empty\n", table, col)
			return
		}
	}

	ins := &plan.Statement{
		Kind:    plan.Insert,
		Table:   table,
		Columns: meta.columnNames(),
		Values:  make(map[string]plan.Value, len(meta.columns)),
	}
	upd := &plan.Statement{
		Kind:  plan.Update,
		Table: table,
		Sets:  make(map[string]plan.Value),
		Where: make(map[string]plan.Value),
	}

	for _, col := range meta.columns {
		v := row[col.Name]
		pv := plan.Value{V: v, Kind: col.Kind}
		parent, isFK := meta.fks[col.Name]
		if !isFK {
			ins.Values[col.Name] = pv
			if v != nil {
				upd.Where[col.Name] = pv
			}
			continue
		}
		if v == nil || e.resolveForeignKey(ctx, parent, v) {
			ins.Values[col.Name] = pv
			continue
		}
		// Unresolvable reference: insert NULL now, restore the real value
		// once the parent's own INSERT has run.
		ins.Values[col.Name] = plan.Value{V: nil, Kind: col.Kind}
		upd.Sets[col.Name] = pv
	}

	if e.onConflict {
		ins.OnConflict = true
	} else {
		if e.rowExists(ctx, table, meta, row) {
			return
		}
		if col, parent, ok := e.referencesSkippedParent(meta, row); ok {
			e.printf("skipping %s record: %s references skipped %s row\n", table, col, parent.Table)
			return
		}
		if cols, ok := e.violatesUniqueRule(ctx, table, row); ok {
			e.recordSkip(table, meta, row)
			e.printf("skipping %s record: would violate uniqueness on (%s)\n", table, joinColumns(cols))
			return
		}
	}

	fp := ins.Fingerprint()
	if e.seen[fp] {
		return
	}
	e.seen[fp] = true

	e.buffer.Append(ins)
	e.processed[table] = true
	for _, pkCol := range meta.pk {
		e.restored.Add(table, pkCol, row[pkCol])
	}
	if len(upd.Sets) > 0 && len(upd.Where) > 0 {
		e.buffer.Append(upd)
	}
}

// recordSkip remembers the dropped row's primary-key values so any dependent
// rows referencing them are dropped as well.
func (e *Engine) recordSkip(table string, meta *tableMeta, row map[string]any) {
	for _, pkCol := range meta.pk {
		e.skipped.Add(table, pkCol, row[pkCol])
	}
}

// referencesSkippedParent reports whether any foreign-key value of the row
// points at a value in the skip registry.
func (e *Engine) referencesSkippedParent(meta *tableMeta, row map[string]any) (string, fkTarget, bool) {
	for _, col := range meta.columns {
		parent, ok := meta.fks[col.Name]
		if !ok {
			continue
		}
		if v := row[col.Name]; v != nil && e.skipped.Has(parent.Table, parent.Column, v) {
			return col.Name, parent, true
		}
	}
	return "", fkTarget{}, false
}

// fkCheck is one step of the foreign-key resolution chain. The chain
// short-circuits on the first step that vouches for the reference.
type fkCheck func(ctx context.Context, parent fkTarget, v any) bool

func (e *Engine) resolutionChain() []fkCheck {
	return []fkCheck{
		// Parent table already contributed rows to this run; ordering
		// guarantees its INSERTs come first.
		func(_ context.Context, parent fkTarget, _ any) bool {
			return e.processed[parent.Table]
		},
		// The exact parent value is scheduled for restoration.
		func(_ context.Context, parent fkTarget, v any) bool {
			return e.restored.Has(parent.Table, parent.Column, v)
		},
		// The parent value already exists on the target.
		func(ctx context.Context, parent fkTarget, v any) bool {
			return e.valueExists(ctx, parent.Table, parent.Column, v)
		},
	}
}

func (e *Engine) resolveForeignKey(ctx context.Context, parent fkTarget, v any) bool {
	for _, check := range e.fkChecks {
		if check(ctx, parent, v) {
			return true
		}
	}
	return false
}

// normalizeBinary rewrites raw byte values to base64 text in place, so every
// later comparison and rendering deals in strings.
func normalizeBinary(row map[string]any) {
	for col, v := range row {
		if b, ok := v.([]byte); ok {
			row[col] = base64.StdEncoding.EncodeToString(b)
		}
	}
}

func blank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
