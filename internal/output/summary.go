package output

import (
	"fmt"
	"strings"

	"refill/internal/graph"
	"refill/internal/restore"
)

type summaryFormatter struct{}

// FormatReport formats an impact report as a compact summary.
// Example output:
//
//	Records:  12
//	Tables:   4
//	Deepest:  3
func (summaryFormatter) FormatReport(r *restore.Report) (string, error) {
	if r == nil || len(r.Entries) == 0 {
		return "No affected records found.\n", nil
	}

	deepest := 0
	parents := 0
	for _, e := range r.Entries {
		if e.Level > deepest {
			deepest = e.Level
		}
		if e.Level < 0 {
			parents += e.Rows
		}
	}

	var sb strings.Builder
	sb.WriteString("Impact Summary\n")
	sb.WriteString("==============\n\n")
	fmt.Fprintf(&sb, "Records:  %d\n", r.TotalRows())
	fmt.Fprintf(&sb, "Tables:   %d\n", r.TotalTables())
	fmt.Fprintf(&sb, "Deepest:  %d\n", deepest)
	if parents > 0 {
		fmt.Fprintf(&sb, "Parents:  %d\n", parents)
	}
	return sb.String(), nil
}

func (summaryFormatter) FormatDescendants(root string, descendants []graph.Descendant) (string, error) {
	deepest := 0
	for _, d := range descendants {
		if d.Depth > deepest {
			deepest = d.Depth
		}
	}

	var sb strings.Builder
	sb.WriteString("Cascade Summary\n")
	sb.WriteString("===============\n\n")
	fmt.Fprintf(&sb, "Root:      %s\n", root)
	fmt.Fprintf(&sb, "Reachable: %d\n", len(descendants))
	fmt.Fprintf(&sb, "Deepest:   %d\n", deepest)
	return sb.String(), nil
}
