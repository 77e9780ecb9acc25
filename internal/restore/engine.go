// Package restore walks the cascade graph from a root predicate, turns every
// affected source row into INSERT (and deferred UPDATE) statements, and
// tracks enough run state to keep the output self-consistent: what has been
// scheduled, what was skipped, and which rows were seen already.
package restore

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"refill/internal/catalog"
	"refill/internal/config"
	"refill/internal/graph"
	"refill/internal/plan"
)

// Options configures one Engine.
type Options struct {
	Rules config.Rules
	// OnConflict switches the pipeline from existence-checked statements to
	// ON CONFLICT DO NOTHING inserts.
	OnConflict bool
	Out        io.Writer
}

// Engine drives one restoration run. It is not safe for concurrent use; a
// run owns all of its state.
type Engine struct {
	source *sql.DB
	target *sql.DB // nil means no target checks; everything resolves pessimistically
	intr   *catalog.Introspector
	graph  graph.Graph

	rules      config.Rules
	onConflict bool
	out        io.Writer

	restored  *Registry
	skipped   *Registry
	seen      map[string]bool // INSERT fingerprints
	processed map[string]bool // tables that produced at least one INSERT
	buffer    plan.Buffer

	entries     []AffectedEntry
	levelTotals map[int]int

	meta     map[string]*tableMeta
	fkChecks []fkCheck
}

// NewEngine wires an engine over an already-built graph. target may be nil.
func NewEngine(source, target *sql.DB, intr *catalog.Introspector, g graph.Graph, opts Options) *Engine {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	e := &Engine{
		source:      source,
		target:      target,
		intr:        intr,
		graph:       g,
		rules:       opts.Rules,
		onConflict:  opts.OnConflict,
		out:         opts.Out,
		restored:    NewRegistry(),
		skipped:     NewRegistry(),
		seen:        make(map[string]bool),
		processed:   make(map[string]bool),
		levelTotals: make(map[int]int),
		meta:        make(map[string]*tableMeta),
	}
	e.fkChecks = e.resolutionChain()
	return e
}

func (e *Engine) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(e.out, format, args...)
}

// Buffer exposes the scheduled statements after Run.
func (e *Engine) Buffer() *plan.Buffer { return &e.buffer }

// Run performs the full pipeline: breadth-first discovery from the root
// predicate, missing-parent backfill, statement optimization, and NULL
// foreign-key resolution. The returned report describes what was found.
func (e *Engine) Run(ctx context.Context, rootTable, rootPredicate string) (*Report, error) {
	e.printf("finding all records affected by: DELETE FROM %s WHERE %s\n", rootTable, rootPredicate)
	if err := e.discover(ctx, rootTable, rootPredicate); err != nil {
		return nil, err
	}
	if added := e.discoverMissingParents(ctx); added > 0 {
		e.printf("added %d missing parent statements\n", added)
	}
	plan.Optimize(&e.buffer, e.out)
	plan.ResolveNullForeignKeys(&e.buffer, e.graph, e.out)

	return &Report{
		RootTable:     rootTable,
		RootPredicate: rootPredicate,
		Entries:       e.entries,
		LevelTotals:   e.levelTotals,
	}, nil
}

// fkTarget is the parent side of a single foreign-key column.
type fkTarget struct {
	Table  string
	Column string
}

// tableMeta is the memoized per-table metadata the pipeline needs: columns in
// catalog order, the primary key (nil when unknown), and every foreign-key
// column mapped to its parent, cascade or not.
type tableMeta struct {
	table   catalog.Table
	columns []catalog.Column
	pk      []string
	fks     map[string]fkTarget
}

func (m *tableMeta) columnNames() []string {
	names := make([]string, len(m.columns))
	for i, c := range m.columns {
		names[i] = c.Name
	}
	return names
}

func (e *Engine) tableMeta(ctx context.Context, full string) (*tableMeta, error) {
	if m, ok := e.meta[full]; ok {
		return m, nil
	}
	table, err := catalog.ParseTableName(full)
	if err != nil {
		return nil, err
	}
	columns, err := e.intr.Columns(ctx, table)
	if err != nil {
		return nil, err
	}

	m := &tableMeta{
		table:   table,
		columns: columns,
		pk:      e.intr.PrimaryKey(ctx, table),
		fks:     make(map[string]fkTarget),
	}

	// The cascade graph only carries the edges that drove traversal; the
	// information-schema view fills in the remaining references so the
	// pipeline NULLs out every unresolvable FK, not just cascading ones.
	all, err := e.intr.AllForeignKeys(ctx, table)
	if err != nil {
		e.printf("foreign-key lookup for %s failed: %v\n", full, err)
	}
	for col, fk := range all {
		m.fks[col] = fkTarget{Table: fk.RefTable, Column: fk.RefColumns[0]}
	}
	for parent, edges := range e.graph {
		for _, edge := range edges {
			if edge.Child != full {
				continue
			}
			for i, local := range edge.LocalColumns {
				if i < len(edge.RefColumns) {
					m.fks[local] = fkTarget{Table: parent, Column: edge.RefColumns[i]}
				}
			}
		}
	}

	e.meta[full] = m
	return m, nil
}
