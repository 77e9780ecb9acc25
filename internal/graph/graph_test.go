package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refill/internal/catalog"
)

func edge(child, local, ref string) Edge {
	return Edge{
		Child:        child,
		LocalColumns: []string{local},
		RefColumns:   []string{ref},
		DeleteRule:   catalog.DeleteCascade,
	}
}

func TestDescendantsLinearChain(t *testing.T) {
	g := Graph{
		"entity.entity": {edge("person.person", "entity_id", "entity_id")},
		"person.person": {edge("account.account", "person_id", "person_id")},
	}

	ds := g.Descendants("entity.entity")
	require.Len(t, ds, 2)
	assert.Equal(t, 1, ds["person.person"].Depth)
	assert.Equal(t, 2, ds["account.account"].Depth)
	assert.Equal(t, "entity.entity -> person.person -> account.account", ds["account.account"].Path)
}

func TestDescendantsDiamondKeepsMinimumDepth(t *testing.T) {
	// root -> a -> c and root -> c: c is reachable at depths 2 and 1.
	g := Graph{
		"root": {edge("a", "root_id", "id"), edge("c", "root_id", "id")},
		"a":    {edge("c", "a_id", "id")},
	}

	ds := g.Descendants("root")
	require.Len(t, ds, 2)
	assert.Equal(t, 1, ds["c"].Depth)
	assert.Equal(t, "root -> c", ds["c"].Path)
}

func TestDescendantsCycleTerminates(t *testing.T) {
	g := Graph{
		"a": {edge("b", "a_id", "id")},
		"b": {edge("a", "b_id", "id")},
	}

	ds := g.Descendants("a")
	require.Len(t, ds, 2)
	assert.Equal(t, 1, ds["b"].Depth)
	// a is reachable from itself through b.
	assert.Equal(t, 2, ds["a"].Depth)
}

func TestDescendantsSiblingBranchesDoNotInterfere(t *testing.T) {
	// Both branches pass through "shared"; the second branch must still see
	// "deep" even though the first branch already visited "shared".
	g := Graph{
		"root":   {edge("left", "r", "id"), edge("right", "r", "id")},
		"left":   {edge("shared", "l", "id")},
		"right":  {edge("shared", "r", "id")},
		"shared": {edge("deep", "s", "id")},
	}

	ds := g.Descendants("root")
	require.Contains(t, ds, "deep")
	assert.Equal(t, 3, ds["deep"].Depth)
	assert.Equal(t, 2, ds["shared"].Depth)
}

func TestDescendantsSkipsUnknownEdges(t *testing.T) {
	g := Graph{
		"root": {edge(catalog.Unknown, "x", "y"), edge("child", "root_id", "id")},
	}

	ds := g.Descendants("root")
	require.Len(t, ds, 1)
	assert.Contains(t, ds, "child")
}

func TestParentOf(t *testing.T) {
	g := Graph{
		"person.person": {edge("account.account", "holder_id", "person_id")},
	}

	parent, refCol, ok := g.ParentOf("account.account", "holder_id")
	require.True(t, ok)
	assert.Equal(t, "person.person", parent)
	assert.Equal(t, "person_id", refCol)

	_, _, ok = g.ParentOf("account.account", "other_col")
	assert.False(t, ok)
}

func TestSortedOrdersByDepthThenName(t *testing.T) {
	ds := map[string]Descendant{
		"b": {Table: "b", Depth: 2},
		"a": {Table: "a", Depth: 1},
		"c": {Table: "c", Depth: 1},
	}
	sorted := Sorted(ds)
	require.Len(t, sorted, 3)
	assert.Equal(t, "a", sorted[0].Table)
	assert.Equal(t, "c", sorted[1].Table)
	assert.Equal(t, "b", sorted[2].Table)
}
