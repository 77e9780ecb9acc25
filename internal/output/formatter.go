// Package output provides a set of formatters for impact reports and cascade
// graph listings. It is extendable and for now provides three formats: text,
// JSON, and summary.
package output

import (
	"fmt"
	"strings"

	"refill/internal/graph"
	"refill/internal/restore"
)

// Format is an enum type representing the available output formats.
type Format string

const (
	FormatText    Format = "text"
	FormatJSON    Format = "json"
	FormatSummary Format = "summary"
)

// Formatter is an interface for formatting impact reports and graph
// traversal results.
type Formatter interface {
	FormatReport(*restore.Report) (string, error)
	FormatDescendants(root string, descendants []graph.Descendant) (string, error)
}

// NewFormatter creates a new Formatter instance based on the given name.
// If no format is specified, defaults to text format.
func NewFormatter(name string) (Formatter, error) {
	format := Format(strings.ToLower(strings.TrimSpace(name)))
	switch format {
	case "", FormatText:
		return textFormatter{}, nil
	case FormatJSON:
		return jsonFormatter{}, nil
	case FormatSummary:
		return summaryFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s; use 'text', 'json', or 'summary'", name)
	}
}
