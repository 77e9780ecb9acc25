// Package graph builds the in-memory table dependency graph from catalog
// metadata and answers reachability questions over it. The graph maps a
// parent table to the foreign-key edges pointing back at it from child
// tables; it is built once per run and read-only afterwards.
package graph

import (
	"context"
	"fmt"
	"io"
	"sort"

	"refill/internal/catalog"
)

// Edge is one foreign key seen from the parent side: the child table whose
// rows a delete on the parent would cascade into.
type Edge struct {
	Child        string
	LocalColumns []string
	RefColumns   []string
	Constraint   string
	DeleteRule   catalog.DeleteRule
}

// Graph maps a parent table's full name to its outgoing edges. Edges whose
// parent could not be parsed are grouped under the catalog.Unknown key; they
// stay visible there but no traversal ever reaches them.
type Graph map[string][]Edge

// Build introspects every table and aggregates its foreign keys into the
// parent-to-children map. One table failing introspection costs only that
// table's edges; the failure is logged and the build continues.
func Build(ctx context.Context, in *catalog.Introspector, mode catalog.Mode, out io.Writer) (Graph, error) {
	if out == nil {
		out = io.Discard
	}

	tables, err := in.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("cascade graph build: %w", err)
	}

	g := make(Graph)
	total := 0
	for i, table := range tables {
		if (i+1)%50 == 0 {
			_, _ = fmt.Fprintf(out, "processed %d/%d tables\n", i+1, len(tables))
		}
		fks, err := in.ForeignKeys(ctx, table, mode)
		if err != nil {
			_, _ = fmt.Fprintf(out, "skipping %s: %v\n", table.FullName(), err)
			continue
		}
		for _, fk := range fks {
			g[fk.RefTable] = append(g[fk.RefTable], Edge{
				Child:        fk.Table,
				LocalColumns: fk.LocalColumns,
				RefColumns:   fk.RefColumns,
				Constraint:   fk.Constraint,
				DeleteRule:   fk.DeleteRule,
			})
			total++
		}
	}
	_, _ = fmt.Fprintf(out, "found %d foreign-key relationships across %d parent tables\n", total, len(g))
	return g, nil
}

// Descendant is one table reachable from a traversal root, with the minimum
// depth across all paths and one example path.
type Descendant struct {
	Table string
	Depth int
	Path  string
}

// Descendants enumerates every table transitively reachable from root. A
// table reachable over several branches (diamond dependency) is recorded once
// with the minimum depth. Each branch carries its own copy of the visited set
// so a cycle on one branch does not hide tables from a sibling branch.
func (g Graph) Descendants(root string) map[string]Descendant {
	return g.descend(root, map[string]bool{}, 0)
}

func (g Graph) descend(from string, visited map[string]bool, depth int) map[string]Descendant {
	if visited[from] {
		return nil
	}
	visited[from] = true

	found := make(map[string]Descendant)
	for _, edge := range g[from] {
		child := edge.Child
		if child == catalog.Unknown {
			continue
		}
		if cur, ok := found[child]; !ok || depth+1 < cur.Depth {
			found[child] = Descendant{Table: child, Depth: depth + 1, Path: from + " -> " + child}
		}

		branch := make(map[string]bool, len(visited))
		for t := range visited {
			branch[t] = true
		}
		for table, d := range g.descend(child, branch, depth+1) {
			if cur, ok := found[table]; !ok || d.Depth < cur.Depth {
				found[table] = Descendant{Table: table, Depth: d.Depth, Path: from + " -> " + d.Path}
			}
		}
	}
	return found
}

// Sorted returns descendants ordered by depth, then name, for stable output.
func Sorted(descendants map[string]Descendant) []Descendant {
	out := make([]Descendant, 0, len(descendants))
	for _, d := range descendants {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Depth != out[j].Depth {
			return out[i].Depth < out[j].Depth
		}
		return out[i].Table < out[j].Table
	})
	return out
}

// ParentOf finds the parent table and referenced column for a child table's
// foreign-key column, or ok=false when the graph has no such edge.
func (g Graph) ParentOf(child, localColumn string) (parent, refColumn string, ok bool) {
	for p, edges := range g {
		for _, e := range edges {
			if e.Child != child {
				continue
			}
			for i, lc := range e.LocalColumns {
				if lc == localColumn && i < len(e.RefColumns) {
					return p, e.RefColumns[i], true
				}
			}
		}
	}
	return "", "", false
}
