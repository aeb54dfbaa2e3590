// Package layout places a dialogue tree on a 2-D grid and styles its nodes
// and edges for an external graph renderer. Build is a pure function of a
// tree snapshot; it never renders anything itself.
package layout

import (
	"fmt"
	"math"

	"github.com/capitalize-ai/dialogue-tree/internal/dialogue"
	"github.com/capitalize-ai/dialogue-tree/internal/model"
)

// Options tunes spacing and zoom.
type Options struct {
	BaseHorizontalGap float64
	BaseVerticalGap   float64
	MinHorizontalGap  float64
	MinVerticalGap    float64
	// GapDecay is applied once per node: gap = base * GapDecay^n.
	GapDecay float64

	MaxLabelRunes int

	FitPadding  float64
	MinZoom     float64
	ZoomDamping float64
}

// DefaultOptions returns the spacing used by the web client.
func DefaultOptions() Options {
	return Options{
		BaseHorizontalGap: 320,
		BaseVerticalGap:   200,
		MinHorizontalGap:  160,
		MinVerticalGap:    110,
		GapDecay:          0.97,
		MaxLabelRunes:     30,
		FitPadding:        0.2,
		MinZoom:           0.3,
		ZoomDamping:       0.12,
	}
}

// Position is a node's centre on the canvas.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Cell is a node's grid slot.
type Cell struct {
	Col int `json:"col" yaml:"col"`
	Row int `json:"row" yaml:"row"`
}

// ActionKind names a per-node gesture the renderer can offer.
type ActionKind string

const (
	ActionEdit ActionKind = "edit"
	ActionJump ActionKind = "jump"
)

// Action is a gesture the renderer forwards back to the API.
type Action struct {
	Kind    ActionKind `json:"kind" yaml:"kind"`
	NodeID  string     `json:"node_id" yaml:"node_id"`
	Enabled bool       `json:"enabled" yaml:"enabled"`
}

// Node is a positioned, styled dialogue node.
type Node struct {
	ID       string       `json:"id" yaml:"id"`
	Label    string       `json:"label" yaml:"label"`
	Content  string       `json:"content" yaml:"content"`
	Position Position     `json:"position" yaml:"position"`
	Cell     Cell         `json:"cell" yaml:"cell"`
	Category NodeCategory `json:"category" yaml:"category"`
	Style    NodeStyle    `json:"style" yaml:"style"`
	Actions  []Action     `json:"actions" yaml:"actions"`
}

// Edge links a parent to a child.
type Edge struct {
	ID            string       `json:"id" yaml:"id"`
	Source        string       `json:"source" yaml:"source"`
	Target        string       `json:"target" yaml:"target"`
	Label         string       `json:"label,omitempty" yaml:"label,omitempty"`
	Category      EdgeCategory `json:"category" yaml:"category"`
	FromRoot      bool         `json:"from_root" yaml:"from_root"`
	OnCurrentPath bool         `json:"on_current_path" yaml:"on_current_path"`
	Style         EdgeStyle    `json:"style" yaml:"style"`
}

// Grid describes the chosen grid shape and spacing.
type Grid struct {
	Columns       int     `json:"columns" yaml:"columns"`
	Rows          int     `json:"rows" yaml:"rows"`
	HorizontalGap float64 `json:"horizontal_gap" yaml:"horizontal_gap"`
	VerticalGap   float64 `json:"vertical_gap" yaml:"vertical_gap"`
}

// Viewport tells the renderer how to frame the graph after the first paint.
type Viewport struct {
	FitView bool    `json:"fit_view" yaml:"fit_view"`
	Padding float64 `json:"padding" yaml:"padding"`
	Zoom    float64 `json:"zoom" yaml:"zoom"`
	MinZoom float64 `json:"min_zoom" yaml:"min_zoom"`
}

// Diagnostic reports corrupt data that layout worked around.
type Diagnostic struct {
	Kind    string `json:"kind" yaml:"kind"`
	NodeID  string `json:"node_id,omitempty" yaml:"node_id,omitempty"`
	Message string `json:"message" yaml:"message"`
}

const (
	DiagnosticDanglingParent = "dangling_parent"
	DiagnosticPathIncomplete = "path_incomplete"
)

// Graph is the complete layout output.
type Graph struct {
	Nodes         []Node       `json:"nodes" yaml:"nodes"`
	Edges         []Edge       `json:"edges" yaml:"edges"`
	Grid          Grid         `json:"grid" yaml:"grid"`
	Viewport      Viewport     `json:"viewport" yaml:"viewport"`
	CurrentNodeID string       `json:"current_node_id" yaml:"current_node_id"`
	CurrentPath   []string     `json:"current_path" yaml:"current_path"`
	Diagnostics   []Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// Build lays out every node of the snapshot in insertion order.
func Build(snap dialogue.Snapshot, opts Options) *Graph {
	index := snap.Index()
	n := len(snap.Nodes)

	g := &Graph{
		Nodes:         make([]Node, 0, n),
		Edges:         []Edge{},
		CurrentNodeID: snap.CurrentNodeID,
	}

	path, err := dialogue.ComputeCurrentPath(index, snap.CurrentNodeID)
	if err != nil {
		g.Diagnostics = append(g.Diagnostics, Diagnostic{
			Kind:    DiagnosticPathIncomplete,
			NodeID:  snap.CurrentNodeID,
			Message: err.Error(),
		})
	}
	g.CurrentPath = path.IDs
	onPath := path.Highlight(snap.CurrentNodeID)

	columns, rows := GridShape(n)
	hGap, vGap := Gaps(n, opts)
	g.Grid = Grid{Columns: columns, Rows: rows, HorizontalGap: hGap, VerticalGap: vGap}
	g.Viewport = Viewport{
		FitView: true,
		Padding: opts.FitPadding,
		Zoom:    Zoom(n, opts),
		MinZoom: opts.MinZoom,
	}

	startLabels := StartingPointLabels(snap.Nodes)

	for i := range snap.Nodes {
		node := &snap.Nodes[i]
		cell := Cell{Col: i % columns, Row: i / columns}
		category := classifyNode(node, onPath)

		g.Nodes = append(g.Nodes, Node{
			ID:       node.NodeID,
			Label:    NodeLabel(node, startLabels, opts.MaxLabelRunes),
			Content:  node.AssistantResponse,
			Position: CellPosition(cell, columns, rows, hGap, vGap),
			Cell:     cell,
			Category: category,
			Style:    nodeStyles[category],
			Actions: []Action{
				{Kind: ActionEdit, NodeID: node.NodeID, Enabled: true},
				{Kind: ActionJump, NodeID: node.NodeID, Enabled: !node.IsRoot() && node.NodeID != snap.CurrentNodeID},
			},
		})

		if node.IsRoot() {
			continue
		}
		if _, ok := index[node.ParentNodeID]; !ok {
			g.Diagnostics = append(g.Diagnostics, Diagnostic{
				Kind:    DiagnosticDanglingParent,
				NodeID:  node.NodeID,
				Message: fmt.Sprintf("parent %q not found", node.ParentNodeID),
			})
			continue
		}
		g.Edges = append(g.Edges, buildEdge(node, onPath))
	}

	return g
}

func buildEdge(child *model.DialogueNode, onPath map[string]bool) Edge {
	fromRoot := child.ParentNodeID == model.RootNodeID
	current := onPath[child.ParentNodeID] && onPath[child.NodeID]
	category := classifyEdge(fromRoot, current)
	return Edge{
		ID:            "e-" + child.ParentNodeID + "-" + child.NodeID,
		Source:        child.ParentNodeID,
		Target:        child.NodeID,
		Label:         EdgeLabel(child.UserInput),
		Category:      category,
		FromRoot:      fromRoot,
		OnCurrentPath: current,
		Style:         edgeStyles[category],
	}
}

// GridShape picks the column and row count for n nodes.
func GridShape(n int) (columns, rows int) {
	columns = 1
	if n > 3 {
		columns = int(math.Round(math.Sqrt(float64(n))))
	}
	if columns < 1 {
		columns = 1
	}
	rows = (n + columns - 1) / columns
	return columns, rows
}

// Gaps returns spacing that shrinks as the tree grows, down to the minimums.
func Gaps(n int, opts Options) (horizontal, vertical float64) {
	decay := math.Pow(opts.GapDecay, float64(n))
	horizontal = math.Max(opts.MinHorizontalGap, opts.BaseHorizontalGap*decay)
	vertical = math.Max(opts.MinVerticalGap, opts.BaseVerticalGap*decay)
	return horizontal, vertical
}

// CellPosition converts a grid cell to coordinates with the grid centred on
// the origin.
func CellPosition(cell Cell, columns, rows int, hGap, vGap float64) Position {
	return Position{
		X: (float64(cell.Col) - float64(columns-1)/2) * hGap,
		Y: (float64(cell.Row) - float64(rows-1)/2) * vGap,
	}
}

// Zoom is the initial zoom after fitting: it drops with ln(n) and never goes
// below MinZoom.
func Zoom(n int, opts Options) float64 {
	if n < 1 {
		n = 1
	}
	return math.Max(opts.MinZoom, 1-opts.ZoomDamping*math.Log(float64(n)))
}
