// Package catalog reads table, column, and constraint metadata from a live
// database catalog. Constraint definitions arrive as text (SHOW CONSTRAINTS
// details) and are parsed into structured foreign-key and primary-key
// descriptions; anything unparseable degrades to the Unknown sentinel instead
// of failing the run.
package catalog

import (
	"fmt"
	"strings"
)

// Unknown is the sentinel used for any constraint field that could not be
// parsed out of the catalog's textual definition. Edges carrying it are kept
// for visibility but never traversed.
const Unknown = "Unknown"

// ColumnKind tags how a column's values must be rendered and compared.
type ColumnKind int

const (
	KindScalar ColumnKind = iota
	KindBinary
	KindTemporal
)

// Column is one column of a table in catalog order.
type Column struct {
	Name string
	Kind ColumnKind
}

// Table identifies a table by schema-qualified name.
type Table struct {
	Schema string
	Name   string
}

// FullName returns the schema-qualified name, e.g. "account.physical_account".
func (t Table) FullName() string {
	return t.Schema + "." + t.Name
}

// ParseTableName splits a schema-qualified name into its parts.
func ParseTableName(full string) (Table, error) {
	schema, name, ok := strings.Cut(full, ".")
	if !ok || schema == "" || name == "" {
		return Table{}, fmt.Errorf("table name %q is not schema-qualified", full)
	}
	return Table{Schema: schema, Name: name}, nil
}

// DeleteRule is the ON DELETE behavior of a foreign key. Everything that is
// not CASCADE is folded into Other; only CASCADE participates in the default
// traversal.
type DeleteRule string

const (
	DeleteCascade DeleteRule = "CASCADE"
	DeleteOther   DeleteRule = "OTHER"
)

// ForeignKey is one foreign-key constraint, parsed from the catalog. Local
// and referenced columns are parallel slices; composite keys carry more than
// one entry.
type ForeignKey struct {
	Constraint   string
	Table        string // child table, schema-qualified
	LocalColumns []string
	RefTable     string
	RefColumns   []string
	DeleteRule   DeleteRule
}

// IsUnknown reports whether any structural field of the constraint failed to
// parse. Such edges must not drive traversal.
func (fk ForeignKey) IsUnknown() bool {
	if fk.RefTable == Unknown {
		return true
	}
	for _, c := range fk.LocalColumns {
		if c == Unknown {
			return true
		}
	}
	for _, c := range fk.RefColumns {
		if c == Unknown {
			return true
		}
	}
	return false
}

// Mode selects which foreign keys participate in graph construction.
type Mode int

const (
	// CascadeOnly keeps only ON DELETE CASCADE constraints.
	CascadeOnly Mode = iota
	// AllKeys keeps every foreign key regardless of delete rule.
	AllKeys
)
