package layout

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/dialogue-tree/internal/dialogue"
	"github.com/capitalize-ai/dialogue-tree/internal/model"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func node(id, parent string, minute int, response string) model.DialogueNode {
	return model.DialogueNode{
		NodeID:            id,
		ParentNodeID:      parent,
		AssistantResponse: response,
		CreatedAt:         t0.Add(time.Duration(minute) * time.Minute),
	}
}

func snapshot(current string, nodes ...model.DialogueNode) dialogue.Snapshot {
	return dialogue.Snapshot{ID: "t1", CharacterID: "c1", Nodes: nodes, CurrentNodeID: current}
}

func edgeByTarget(g *Graph, target string) Edge {
	for _, e := range g.Edges {
		if e.Target == target {
			return e
		}
	}
	return Edge{}
}

func nodeByID(g *Graph, id string) Node {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n
		}
	}
	return Node{}
}

func TestBuild_RootOnly(t *testing.T) {
	g := Build(snapshot(model.RootNodeID, node(model.RootNodeID, "", 0, "")), DefaultOptions())

	require.Len(t, g.Nodes, 1)
	assert.Empty(t, g.Edges)
	assert.Empty(t, g.Diagnostics)
	assert.Equal(t, "root", g.Nodes[0].Label)
	assert.Equal(t, NodeRoot, g.Nodes[0].Category)
	assert.Equal(t, Position{X: 0, Y: 0}, g.Nodes[0].Position)
	assert.Equal(t, 1.0, g.Viewport.Zoom)
}

func TestBuild_ChainOnCurrentPath(t *testing.T) {
	g := Build(snapshot("B",
		node(model.RootNodeID, "", 0, ""),
		node("A", model.RootNodeID, 1, "hello there"),
		node("B", "A", 2, "general kenobi"),
	), DefaultOptions())

	assert.Equal(t, []string{"B", "A"}, g.CurrentPath)
	require.Len(t, g.Edges, 2)

	rootA := edgeByTarget(g, "A")
	assert.Equal(t, model.RootNodeID, rootA.Source)
	assert.True(t, rootA.OnCurrentPath)
	assert.True(t, rootA.FromRoot)
	assert.Equal(t, EdgeCurrentPath, rootA.Category)

	ab := edgeByTarget(g, "B")
	assert.True(t, ab.OnCurrentPath)
	assert.False(t, ab.FromRoot)
	assert.Equal(t, EdgeCurrentPath, ab.Category)
	assert.True(t, ab.Style.Animated)

	assert.Equal(t, NodeCurrentPath, nodeByID(g, "A").Category)
	assert.Equal(t, NodeCurrentPath, nodeByID(g, "B").Category)
}

func TestBuild_OffPathEdges(t *testing.T) {
	g := Build(snapshot("A",
		node(model.RootNodeID, "", 0, ""),
		node("A", model.RootNodeID, 1, "a"),
		node("B", "A", 2, "b"),
		node("C", model.RootNodeID, 3, "c"),
	), DefaultOptions())

	assert.Equal(t, EdgeCurrentPath, edgeByTarget(g, "A").Category)
	assert.Equal(t, EdgeOtherPath, edgeByTarget(g, "B").Category)

	rootC := edgeByTarget(g, "C")
	assert.Equal(t, EdgeRootSource, rootC.Category)
	assert.True(t, rootC.FromRoot)
	assert.False(t, rootC.OnCurrentPath)
	assert.Equal(t, NodeOther, nodeByID(g, "C").Category)
}

func TestBuild_EdgeCategoryMatchesPathMembership(t *testing.T) {
	nodes := []model.DialogueNode{node(model.RootNodeID, "", 0, "")}
	for i := 1; i < 20; i++ {
		parent := model.RootNodeID
		if i > 2 {
			parent = fmt.Sprintf("n%d", i/2)
		}
		nodes = append(nodes, node(fmt.Sprintf("n%d", i), parent, i, "x"))
	}
	snap := snapshot("n17", nodes...)
	g := Build(snap, DefaultOptions())

	path, err := dialogue.ComputeCurrentPath(snap.Index(), snap.CurrentNodeID)
	require.NoError(t, err)
	members := path.Highlight(snap.CurrentNodeID)
	for _, e := range g.Edges {
		want := members[e.Source] && members[e.Target]
		assert.Equal(t, want, e.OnCurrentPath, e.ID)
		assert.Equal(t, want, e.Category == EdgeCurrentPath, e.ID)
	}
}

func TestBuild_DanglingParentSkipped(t *testing.T) {
	g := Build(snapshot("A",
		node(model.RootNodeID, "", 0, ""),
		node("A", model.RootNodeID, 1, "a"),
		node("X", "ghost", 2, "x"),
	), DefaultOptions())

	require.Len(t, g.Nodes, 3)
	require.Len(t, g.Edges, 1)
	require.Len(t, g.Diagnostics, 1)
	assert.Equal(t, DiagnosticDanglingParent, g.Diagnostics[0].Kind)
	assert.Equal(t, "X", g.Diagnostics[0].NodeID)
}

func TestBuild_CurrentUnderDanglingParent(t *testing.T) {
	g := Build(snapshot("X",
		node(model.RootNodeID, "", 0, ""),
		node("X", "ghost", 1, "x"),
	), DefaultOptions())

	assert.Equal(t, []string{"X"}, g.CurrentPath)
	kinds := map[string]bool{}
	for _, d := range g.Diagnostics {
		kinds[d.Kind] = true
	}
	assert.True(t, kinds[DiagnosticPathIncomplete])
	assert.True(t, kinds[DiagnosticDanglingParent])
}

func TestBuild_StartingPointsInTenNodeTree(t *testing.T) {
	nodes := []model.DialogueNode{
		node(model.RootNodeID, "", 0, ""),
		node("s-old", model.RootNodeID, 1, "first opening"),
		node("a1", "s-old", 2, "a1"),
		node("a2", "a1", 3, "a2"),
		node("a3", "a2", 4, "a3"),
		node("s-new", model.RootNodeID, 5, "second opening"),
		node("b1", "s-new", 6, "b1"),
		node("b2", "b1", 7, "b2"),
		node("b3", "b1", 8, "b3"),
		node("b4", "b3", 9, "b4"),
	}
	g := Build(snapshot("b4", nodes...), DefaultOptions())

	require.Len(t, g.Nodes, 10)
	assert.Equal(t, "starting point 2/2", nodeByID(g, "s-old").Label)
	assert.Equal(t, "starting point 1/2", nodeByID(g, "s-new").Label)
	assert.Equal(t, 3, g.Grid.Columns)
	assert.Equal(t, 4, g.Grid.Rows)
}

func TestBuild_JumpActions(t *testing.T) {
	g := Build(snapshot("A",
		node(model.RootNodeID, "", 0, ""),
		node("A", model.RootNodeID, 1, "a"),
		node("B", model.RootNodeID, 2, "b"),
	), DefaultOptions())

	jump := func(id string) bool {
		for _, a := range nodeByID(g, id).Actions {
			if a.Kind == ActionJump {
				return a.Enabled
			}
		}
		return false
	}
	assert.False(t, jump(model.RootNodeID))
	assert.False(t, jump("A"))
	assert.True(t, jump("B"))
}

func TestGridShape(t *testing.T) {
	cases := []struct{ n, cols, rows int }{
		{0, 1, 0},
		{1, 1, 1},
		{3, 1, 3},
		{4, 2, 2},
		{5, 2, 3},
		{7, 3, 3},
		{10, 3, 4},
		{13, 4, 4},
		{100, 10, 10},
	}
	for _, tc := range cases {
		cols, rows := GridShape(tc.n)
		assert.Equal(t, tc.cols, cols, "n=%d", tc.n)
		assert.Equal(t, tc.rows, rows, "n=%d", tc.n)
	}
}

func TestBuild_UniqueCellsAndCentredGrid(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 6, 11, 27, 50} {
		nodes := []model.DialogueNode{node(model.RootNodeID, "", 0, "")}
		for i := 1; i < n; i++ {
			nodes = append(nodes, node(fmt.Sprintf("n%d", i), model.RootNodeID, i, "x"))
		}
		g := Build(snapshot(model.RootNodeID, nodes...), DefaultOptions())

		require.GreaterOrEqual(t, g.Grid.Columns*g.Grid.Rows, n)
		cells := map[Cell]bool{}
		positions := map[Position]bool{}
		for _, nd := range g.Nodes {
			assert.False(t, cells[nd.Cell], "n=%d duplicate cell %v", n, nd.Cell)
			assert.False(t, positions[nd.Position], "n=%d duplicate position", n)
			cells[nd.Cell] = true
			positions[nd.Position] = true
			assert.Less(t, nd.Cell.Col, g.Grid.Columns)
			assert.Less(t, nd.Cell.Row, g.Grid.Rows)
		}

		first := CellPosition(Cell{0, 0}, g.Grid.Columns, g.Grid.Rows, g.Grid.HorizontalGap, g.Grid.VerticalGap)
		last := CellPosition(Cell{g.Grid.Columns - 1, g.Grid.Rows - 1}, g.Grid.Columns, g.Grid.Rows, g.Grid.HorizontalGap, g.Grid.VerticalGap)
		assert.InDelta(t, 0, first.X+last.X, 1e-9)
		assert.InDelta(t, 0, first.Y+last.Y, 1e-9)
	}
}

func TestGaps_ShrinkToFloor(t *testing.T) {
	opts := DefaultOptions()
	h1, v1 := Gaps(2, opts)
	h2, v2 := Gaps(20, opts)
	assert.Greater(t, h1, h2)
	assert.Greater(t, v1, v2)

	h3, v3 := Gaps(1000, opts)
	assert.Equal(t, opts.MinHorizontalGap, h3)
	assert.Equal(t, opts.MinVerticalGap, v3)
}

func TestZoom(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 1.0, Zoom(1, opts))
	assert.Equal(t, 1.0, Zoom(0, opts))
	assert.InDelta(t, 1-opts.ZoomDamping*math.Log(10), Zoom(10, opts), 1e-9)
	assert.Greater(t, Zoom(10, opts), Zoom(50, opts))
	assert.Equal(t, opts.MinZoom, Zoom(1_000_000, opts))
}
