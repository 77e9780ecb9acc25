package output

import (
	"encoding/json"

	"refill/internal/graph"
	"refill/internal/restore"
)

type jsonFormatter struct{}

type reportSummary struct {
	TotalRecords int `json:"totalRecords"`
	TotalTables  int `json:"totalTables"`
}

type reportPayload struct {
	Format    string                  `json:"format"`
	Root      string                  `json:"root"`
	Predicate string                  `json:"predicate"`
	Summary   reportSummary           `json:"summary"`
	Tables    []restore.TableSummary  `json:"tables,omitempty"`
	Entries   []restore.AffectedEntry `json:"entries,omitempty"`
}

type descendantsPayload struct {
	Format      string             `json:"format"`
	Root        string             `json:"root"`
	Reachable   int                `json:"reachable"`
	Descendants []graph.Descendant `json:"descendants,omitempty"`
}

func (jsonFormatter) FormatReport(r *restore.Report) (string, error) {
	payload := reportPayload{Format: string(FormatJSON)}
	if r != nil {
		payload.Root = r.RootTable
		payload.Predicate = r.RootPredicate
		payload.Tables = r.PerTable()
		payload.Entries = r.Entries
		payload.Summary = reportSummary{
			TotalRecords: r.TotalRows(),
			TotalTables:  r.TotalTables(),
		}
	}
	return marshalJSON(payload)
}

func (jsonFormatter) FormatDescendants(root string, descendants []graph.Descendant) (string, error) {
	payload := descendantsPayload{
		Format:      string(FormatJSON),
		Root:        root,
		Reachable:   len(descendants),
		Descendants: descendants,
	}
	return marshalJSON(payload)
}

func marshalJSON(v any) (string, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out) + "\n", nil
}
