package output

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refill/internal/graph"
	"refill/internal/restore"
)

func sampleReport() *restore.Report {
	return &restore.Report{
		RootTable:     "app.entity",
		RootPredicate: "entity_id = 1",
		Entries: []restore.AffectedEntry{
			{Table: "app.entity", Predicate: "entity_id = 1", Level: 0, Rows: 1},
			{Table: "app.person", Predicate: "entity_id IN (...)", Level: 1, Rows: 4},
			{Table: "app.entity", Predicate: "entity_id = '2'", Level: -1, Rows: 1},
		},
		LevelTotals: map[int]int{0: 1, 1: 4, -1: 1},
	}
}

func sampleDescendants() []graph.Descendant {
	return []graph.Descendant{
		{Table: "app.person", Depth: 1, Path: "app.entity -> app.person"},
		{Table: "app.account", Depth: 2, Path: "app.entity -> app.person -> app.account"},
	}
}

func TestNewFormatter(t *testing.T) {
	for _, name := range []string{"", "text", "json", "summary", " JSON "} {
		f, err := NewFormatter(name)
		require.NoError(t, err, "format %q", name)
		require.NotNil(t, f)
	}

	_, err := NewFormatter("xml")
	assert.ErrorContains(t, err, "unsupported format: xml")
}

func TestTextFormatter(t *testing.T) {
	f, err := NewFormatter("text")
	require.NoError(t, err)

	s, err := f.FormatReport(sampleReport())
	require.NoError(t, err)
	assert.Contains(t, s, "DELETE FROM app.entity WHERE entity_id = 1")
	assert.Contains(t, s, "app.person")
	assert.Contains(t, s, "[parent]")
	assert.Contains(t, s, "Total: 6 records across 2 tables")
	assert.Contains(t, s, "By level: parents=1, 0=1, 1=4")

	s, err = f.FormatReport(&restore.Report{})
	require.NoError(t, err)
	assert.Equal(t, "No affected records found.\n", s)

	s, err = f.FormatDescendants("app.entity", sampleDescendants())
	require.NoError(t, err)
	assert.Contains(t, s, "depth 1")
	assert.Contains(t, s, "via app.entity -> app.person -> app.account")
	assert.Contains(t, s, "2 tables reachable")

	s, err = f.FormatDescendants("app.leaf", nil)
	require.NoError(t, err)
	assert.Equal(t, "No tables cascade from app.leaf.\n", s)
}

func TestJSONFormatter(t *testing.T) {
	f, err := NewFormatter("json")
	require.NoError(t, err)

	s, err := f.FormatReport(sampleReport())
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &payload))
	assert.Equal(t, "app.entity", payload["root"])
	assert.Equal(t, "entity_id = 1", payload["predicate"])
	summary := payload["summary"].(map[string]any)
	assert.EqualValues(t, 6, summary["totalRecords"])
	assert.EqualValues(t, 2, summary["totalTables"])
	assert.Len(t, payload["entries"], 3)

	s, err = f.FormatDescendants("app.entity", sampleDescendants())
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(s), &payload))
	assert.EqualValues(t, 2, payload["reachable"])
}

func TestSummaryFormatter(t *testing.T) {
	f, err := NewFormatter("summary")
	require.NoError(t, err)

	s, err := f.FormatReport(sampleReport())
	require.NoError(t, err)
	assert.Contains(t, s, "Records:  6")
	assert.Contains(t, s, "Tables:   2")
	assert.Contains(t, s, "Deepest:  1")
	assert.Contains(t, s, "Parents:  1")

	s, err = f.FormatDescendants("app.entity", sampleDescendants())
	require.NoError(t, err)
	assert.Contains(t, s, "Root:      app.entity")
	assert.Contains(t, s, "Reachable: 2")
	assert.Contains(t, s, "Deepest:   2")
}
