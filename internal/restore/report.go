package restore

import "sort"

// AffectedEntry is one discovered (table, predicate) pair and the number of
// source rows it matched. Level 0 is the root; missing parents discovered
// after the walk carry level -1.
type AffectedEntry struct {
	Table     string `json:"table"`
	Predicate string `json:"conditions"`
	Level     int    `json:"level"`
	Rows      int    `json:"record_count"`
}

// Report summarizes a completed run for the analysis formatters.
type Report struct {
	RootTable     string         `json:"root_table"`
	RootPredicate string         `json:"root_conditions"`
	Entries       []AffectedEntry `json:"entries"`
	LevelTotals   map[int]int    `json:"level_totals"`
}

// TotalRows sums the matched rows across every entry.
func (r *Report) TotalRows() int {
	total := 0
	for _, e := range r.Entries {
		total += e.Rows
	}
	return total
}

// TotalTables counts distinct tables with at least one matched row.
func (r *Report) TotalTables() int {
	seen := make(map[string]bool)
	for _, e := range r.Entries {
		if e.Rows > 0 {
			seen[e.Table] = true
		}
	}
	return len(seen)
}

// TableSummary aggregates every entry for one table: rows are summed and the
// level is the shallowest at which the table appeared.
type TableSummary struct {
	Table string `json:"table"`
	Rows  int    `json:"record_count"`
	Level int    `json:"level"`
}

// PerTable collapses entries by table, ordered by level then name. Tables
// whose entries all matched zero rows are kept so the caller can show them.
func (r *Report) PerTable() []TableSummary {
	byTable := make(map[string]*TableSummary)
	for _, e := range r.Entries {
		s, ok := byTable[e.Table]
		if !ok {
			byTable[e.Table] = &TableSummary{Table: e.Table, Rows: e.Rows, Level: e.Level}
			continue
		}
		s.Rows += e.Rows
		if e.Level < s.Level {
			s.Level = e.Level
		}
	}
	out := make([]TableSummary, 0, len(byTable))
	for _, s := range byTable {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].Table < out[j].Table
	})
	return out
}
