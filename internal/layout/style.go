package layout

import "github.com/capitalize-ai/dialogue-tree/internal/model"

// NodeCategory is the visual class of a node.
type NodeCategory string

const (
	NodeRoot        NodeCategory = "root"
	NodeCurrentPath NodeCategory = "current-path"
	NodeOther       NodeCategory = "other"
)

// EdgeCategory is the visual class of an edge.
type EdgeCategory string

const (
	EdgeRootSource  EdgeCategory = "root-source"
	EdgeCurrentPath EdgeCategory = "current-path"
	EdgeOtherPath   EdgeCategory = "other-path"
)

// NodeStyle is how the renderer paints a node.
type NodeStyle struct {
	Background  string  `json:"background" yaml:"background"`
	Border      string  `json:"border" yaml:"border"`
	BorderWidth float64 `json:"border_width" yaml:"border_width"`
	Color       string  `json:"color" yaml:"color"`
}

// EdgeStyle is how the renderer strokes an edge.
type EdgeStyle struct {
	Stroke          string  `json:"stroke" yaml:"stroke"`
	StrokeWidth     float64 `json:"stroke_width" yaml:"stroke_width"`
	StrokeDasharray string  `json:"stroke_dasharray,omitempty" yaml:"stroke_dasharray,omitempty"`
	Animated        bool    `json:"animated" yaml:"animated"`
}

var nodeStyles = map[NodeCategory]NodeStyle{
	NodeRoot:        {Background: "#1e293b", Border: "#f59e0b", BorderWidth: 2, Color: "#f8fafc"},
	NodeCurrentPath: {Background: "#eff6ff", Border: "#3b82f6", BorderWidth: 2, Color: "#1e3a8a"},
	NodeOther:       {Background: "#ffffff", Border: "#cbd5e1", BorderWidth: 1, Color: "#334155"},
}

var edgeStyles = map[EdgeCategory]EdgeStyle{
	EdgeCurrentPath: {Stroke: "#3b82f6", StrokeWidth: 3, Animated: true},
	EdgeRootSource:  {Stroke: "#f59e0b", StrokeWidth: 2, StrokeDasharray: "6 4"},
	EdgeOtherPath:   {Stroke: "#94a3b8", StrokeWidth: 1.5, StrokeDasharray: "4 4"},
}

func classifyNode(node *model.DialogueNode, onPath map[string]bool) NodeCategory {
	switch {
	case node.IsRoot():
		return NodeRoot
	case onPath[node.NodeID]:
		return NodeCurrentPath
	default:
		return NodeOther
	}
}

// classifyEdge gives current-path precedence over root-source; both facts
// are also kept on the edge as flags.
func classifyEdge(fromRoot, onCurrentPath bool) EdgeCategory {
	switch {
	case onCurrentPath:
		return EdgeCurrentPath
	case fromRoot:
		return EdgeRootSource
	default:
		return EdgeOtherPath
	}
}
