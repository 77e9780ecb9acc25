package restore

import "fmt"

// Registry tracks per-table, per-column value sets for one run. The restored
// registry records primary-key values already scheduled for insertion; the
// skip registry records values deliberately dropped so dependents can be
// cascade-skipped. Both only ever grow.
type Registry struct {
	tables map[string]map[string]map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]map[string]map[string]bool)}
}

// Add records a value; values are keyed by their rendered text so numeric and
// string forms of the same identifier collide as intended.
func (r *Registry) Add(table, column string, v any) {
	if v == nil {
		return
	}
	cols, ok := r.tables[table]
	if !ok {
		cols = make(map[string]map[string]bool)
		r.tables[table] = cols
	}
	vals, ok := cols[column]
	if !ok {
		vals = make(map[string]bool)
		cols[column] = vals
	}
	vals[fmt.Sprint(v)] = true
}

// Has reports whether the value was recorded for the table and column.
func (r *Registry) Has(table, column string, v any) bool {
	if v == nil {
		return false
	}
	return r.tables[table][column][fmt.Sprint(v)]
}

// Empty reports whether nothing has been recorded yet.
func (r *Registry) Empty() bool { return len(r.tables) == 0 }
