package restore

import (
	"context"
	"fmt"
	"strings"

	"refill/internal/catalog"
	"refill/internal/graph"
)

// workItem is one (table, predicate) pair awaiting a source query.
type workItem struct {
	table     string
	predicate string
	level     int
}

func visitKey(table, predicate string) string {
	return table + "::" + predicate
}

// discover walks the cascade graph breadth-first from the root predicate.
// Every dequeued pair is queried against the source once; its rows feed the
// statement pipeline and every cascading child is enqueued with a predicate
// selecting exactly the rows the parent's rows would have deleted.
func (e *Engine) discover(ctx context.Context, rootTable, rootPredicate string) error {
	queue := []workItem{{table: rootTable, predicate: rootPredicate, level: 0}}
	visited := map[string]bool{visitKey(rootTable, rootPredicate): true}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := queue[0]
		queue = queue[1:]

		rs, err := queryRows(ctx, e.source, fmt.Sprintf("SELECT * FROM %s WHERE %s", item.table, item.predicate))
		if err != nil {
			e.printf("query on %s failed: %v\n", item.table, err)
			e.record(item, 0)
			continue
		}

		e.record(item, len(rs.rows))
		if len(rs.rows) == 0 {
			continue
		}

		e.printf("level %d: %s matched %d records\n", item.level, item.table, len(rs.rows))
		e.processRows(ctx, item.table, rs)

		for _, edge := range e.graph[item.table] {
			if edge.Child == catalog.Unknown {
				continue
			}
			child := workItem{
				table:     edge.Child,
				predicate: childPredicate(edge, item.table, item.predicate),
				level:     item.level + 1,
			}
			key := visitKey(child.table, child.predicate)
			if visited[key] {
				continue
			}
			visited[key] = true
			queue = append(queue, child)
		}
	}
	return nil
}

func (e *Engine) record(item workItem, rows int) {
	e.entries = append(e.entries, AffectedEntry{
		Table:     item.table,
		Predicate: item.predicate,
		Level:     item.level,
		Rows:      rows,
	})
	e.levelTotals[item.level] += rows
}

// childPredicate selects the child rows referencing the parent rows matched
// by the parent predicate. Composite keys use the tuple IN form.
func childPredicate(edge graph.Edge, parentTable, parentPredicate string) string {
	local := strings.Join(edge.LocalColumns, ", ")
	ref := strings.Join(edge.RefColumns, ", ")
	sub := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s", ref, parentTable, parentPredicate)
	if len(edge.LocalColumns) > 1 {
		return fmt.Sprintf("(%s) IN (%s)", local, sub)
	}
	return fmt.Sprintf("%s IN (%s)", local, sub)
}
