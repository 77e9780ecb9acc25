package output

import (
	"fmt"
	"sort"
	"strings"

	"refill/internal/graph"
	"refill/internal/restore"
)

type textFormatter struct{}

// FormatReport renders the full per-table impact breakdown, deepest context
// first within each level.
func (textFormatter) FormatReport(r *restore.Report) (string, error) {
	if r == nil || len(r.Entries) == 0 {
		return "No affected records found.\n", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Impact of: DELETE FROM %s WHERE %s\n\n", r.RootTable, r.RootPredicate)

	for _, s := range r.PerTable() {
		label := fmt.Sprintf("level %d", s.Level)
		if s.Level < 0 {
			label = "parent"
		}
		fmt.Fprintf(&sb, "  [%s] %-40s %d records\n", label, s.Table, s.Rows)
	}

	fmt.Fprintf(&sb, "\nTotal: %d records across %d tables\n", r.TotalRows(), r.TotalTables())
	writeLevelTotals(&sb, r.LevelTotals)
	return sb.String(), nil
}

// FormatDescendants lists every table reachable from the root with depth and
// one example path.
func (textFormatter) FormatDescendants(root string, descendants []graph.Descendant) (string, error) {
	if len(descendants) == 0 {
		return fmt.Sprintf("No tables cascade from %s.\n", root), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Tables cascading from %s:\n\n", root)
	for _, d := range descendants {
		fmt.Fprintf(&sb, "  depth %d: %-40s via %s\n", d.Depth, d.Table, d.Path)
	}
	fmt.Fprintf(&sb, "\n%d tables reachable\n", len(descendants))
	return sb.String(), nil
}

func writeLevelTotals(sb *strings.Builder, totals map[int]int) {
	if len(totals) == 0 {
		return
	}
	levels := make([]int, 0, len(totals))
	for l := range totals {
		levels = append(levels, l)
	}
	sort.Ints(levels)
	sb.WriteString("By level: ")
	for i, l := range levels {
		if i > 0 {
			sb.WriteString(", ")
		}
		if l < 0 {
			fmt.Fprintf(sb, "parents=%d", totals[l])
			continue
		}
		fmt.Fprintf(sb, "%d=%d", l, totals[l])
	}
	sb.WriteByte('\n')
}
