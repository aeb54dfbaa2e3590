package dialogue

import (
	"fmt"

	"github.com/capitalize-ai/dialogue-tree/internal/model"
)

// Path is the chain of node ids from a node up to, but excluding, root.
// IDs are leaf-first.
type Path struct {
	IDs []string

	// ReachedRoot is false when the walk stopped early on corrupt data.
	ReachedRoot bool
}

// ComputeCurrentPath walks parent links from currentID until root. The walk
// takes at most len(nodes) steps; a missing node, a missing parent or a
// cycle stops it and the partial path is returned with an error wrapping
// ErrCorruptTree.
func ComputeCurrentPath(nodes map[string]*model.DialogueNode, currentID string) (Path, error) {
	ids := []string{}
	id := currentID
	for steps := 0; id != model.RootNodeID; steps++ {
		node, ok := nodes[id]
		if !ok {
			return Path{IDs: ids}, fmt.Errorf("%w: node %q not found", ErrCorruptTree, id)
		}
		if steps >= len(nodes) {
			return Path{IDs: ids}, fmt.Errorf("%w: cycle above node %q", ErrCorruptTree, id)
		}
		ids = append(ids, id)
		if node.ParentNodeID == "" {
			return Path{IDs: ids}, fmt.Errorf("%w: node %q has no parent", ErrCorruptTree, id)
		}
		id = node.ParentNodeID
	}
	return Path{IDs: ids, ReachedRoot: true}, nil
}

// RootFirst returns the ids in conversation order.
func (p Path) RootFirst() []string {
	out := make([]string, len(p.IDs))
	for i, id := range p.IDs {
		out[len(p.IDs)-1-i] = id
	}
	return out
}

// Highlight returns the node ids drawn as the current path: the walked ids,
// the current node and, when the walk reached it, root.
func (p Path) Highlight(currentID string) map[string]bool {
	set := make(map[string]bool, len(p.IDs)+2)
	for _, id := range p.IDs {
		set[id] = true
	}
	set[currentID] = true
	if p.ReachedRoot {
		set[model.RootNodeID] = true
	}
	return set
}
