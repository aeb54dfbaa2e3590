// Package dialogue implements the branching dialogue tree: the node arena,
// the current-path pointer, branch navigation and in-place content edits.
package dialogue

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/dialogue-tree/internal/model"
)

// Tree is an append-mostly arena of dialogue nodes plus the pointer to the
// node the user is currently at. Nodes reference their parent by id.
//
// The current node is only moved by Navigator.Switch and by Append, so the
// invariant checks live in one place.
type Tree struct {
	ID          string
	TenantID    string
	CharacterID string

	mu        sync.RWMutex
	nodes     map[string]*model.DialogueNode
	order     []string
	current   string
	createdAt time.Time
	updatedAt time.Time
	clock     func() time.Time
}

// Snapshot is a read-only copy of a tree, safe to hand to other goroutines.
// It is also the JSON form of a tree.
type Snapshot struct {
	ID            string               `json:"id"`
	TenantID      string               `json:"tenant_id,omitempty"`
	CharacterID   string               `json:"character_id"`
	Nodes         []model.DialogueNode `json:"nodes"`
	CurrentNodeID string               `json:"current_node_id"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// New creates a tree for a character holding only the root node.
func New(characterID string) *Tree {
	return newTree(characterID, time.Now)
}

func newTree(characterID string, clock func() time.Time) *Tree {
	now := clock()
	root := &model.DialogueNode{
		NodeID:    model.RootNodeID,
		CreatedAt: now,
	}
	return &Tree{
		ID:          uuid.Must(uuid.NewV7()).String(),
		CharacterID: characterID,
		nodes:       map[string]*model.DialogueNode{model.RootNodeID: root},
		order:       []string{model.RootNodeID},
		current:     model.RootNodeID,
		createdAt:   now,
		updatedAt:   now,
		clock:       clock,
	}
}

// FromSnapshot rebuilds a tree from its snapshot form. Corrupt input is
// accepted as-is so it can be inspected; call Validate to check it.
func FromSnapshot(s Snapshot) *Tree {
	t := &Tree{clock: time.Now}
	t.load(s)
	return t
}

func (t *Tree) load(s Snapshot) {
	t.ID = s.ID
	t.TenantID = s.TenantID
	t.CharacterID = s.CharacterID
	t.nodes = make(map[string]*model.DialogueNode, len(s.Nodes))
	t.order = make([]string, 0, len(s.Nodes))
	for i := range s.Nodes {
		n := cloneNode(&s.Nodes[i])
		if _, dup := t.nodes[n.NodeID]; !dup {
			t.order = append(t.order, n.NodeID)
		}
		t.nodes[n.NodeID] = n
	}
	t.current = s.CurrentNodeID
	if t.current == "" {
		t.current = model.RootNodeID
	}
	t.createdAt = s.CreatedAt
	t.updatedAt = s.UpdatedAt
}

// Len returns the number of nodes, root included.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

// CurrentNodeID returns the id of the node the conversation continues from.
func (t *Tree) CurrentNodeID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// CreatedAt returns when the tree was created.
func (t *Tree) CreatedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.createdAt
}

// UpdatedAt returns the time of the last structural or content change.
func (t *Tree) UpdatedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.updatedAt
}

// Node returns a copy of the node with the given id.
func (t *Tree) Node(id string) (model.DialogueNode, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	if !ok {
		return model.DialogueNode{}, false
	}
	return *cloneNode(n), true
}

// Nodes returns copies of all nodes in insertion order.
func (t *Tree) Nodes() []model.DialogueNode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nodesLocked()
}

func (t *Tree) nodesLocked() []model.DialogueNode {
	out := make([]model.DialogueNode, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *cloneNode(t.nodes[id]))
	}
	return out
}

// Children returns the ids of the direct children of a node in insertion order.
func (t *Tree) Children(id string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if _, ok := t.nodes[id]; !ok {
		return nil
	}
	var children []string
	for _, childID := range t.order {
		n := t.nodes[childID]
		if !n.IsRoot() && n.ParentNodeID == id {
			children = append(children, childID)
		}
	}
	return children
}

// Siblings returns the ids of the other children of the node's parent.
func (t *Tree) Siblings(id string) []string {
	node, ok := t.Node(id)
	if !ok || node.IsRoot() {
		return nil
	}
	var siblings []string
	for _, childID := range t.Children(node.ParentNodeID) {
		if childID != id {
			siblings = append(siblings, childID)
		}
	}
	return siblings
}

// Thread returns the turns from the first turn after root down to the given
// node, in conversation order. It is the context a chat resumes from.
func (t *Tree) Thread(id string) ([]model.DialogueNode, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if _, ok := t.nodes[id]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	path, err := ComputeCurrentPath(t.nodes, id)
	if err != nil {
		return nil, err
	}
	ids := path.RootFirst()
	thread := make([]model.DialogueNode, 0, len(ids))
	for _, nodeID := range ids {
		thread = append(thread, *cloneNode(t.nodes[nodeID]))
	}
	return thread, nil
}

// CurrentPath walks from the current node towards root. See ComputeCurrentPath.
func (t *Tree) CurrentPath() (Path, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return ComputeCurrentPath(t.nodes, t.current)
}

// Append records a newly generated turn as a child of req.ParentNodeID, or of
// the current node when no parent is given, and makes it current.
func (t *Tree) Append(req *model.AppendTurnRequest) (model.DialogueNode, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	parentID := req.ParentNodeID
	if parentID == "" {
		parentID = t.current
	}
	if _, ok := t.nodes[parentID]; !ok {
		return model.DialogueNode{}, fmt.Errorf("parent %q: %w", parentID, ErrNotFound)
	}

	now := t.clock()
	fullResponse := req.FullResponse
	if fullResponse == "" {
		fullResponse = req.AssistantResponse
	}
	node := &model.DialogueNode{
		NodeID:            uuid.Must(uuid.NewV7()).String(),
		ParentNodeID:      parentID,
		UserInput:         req.UserInput,
		AssistantResponse: req.AssistantResponse,
		FullResponse:      fullResponse,
		CreatedAt:         now,
	}
	t.nodes[node.NodeID] = node
	t.order = append(t.order, node.NodeID)
	t.current = node.NodeID
	t.updatedAt = now

	return *cloneNode(node), nil
}

// switchTo moves the current pointer. It reports whether anything changed.
func (t *Tree) switchTo(target string) (bool, error) {
	if target == model.RootNodeID {
		return false, ErrInvalidTarget
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.nodes[target]; !ok {
		return false, fmt.Errorf("%w: %q", ErrNotFound, target)
	}
	if t.current == target {
		return false, nil
	}
	t.current = target
	t.updatedAt = t.clock()
	return true, nil
}

// applyEdit replaces a node's response and summary in one step.
func (t *Tree) applyEdit(id, text string, parsed *model.ParsedContent) (model.DialogueNode, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	node, ok := t.nodes[id]
	if !ok {
		return model.DialogueNode{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	node.AssistantResponse = text
	node.ParsedContent = parsed
	t.updatedAt = t.clock()
	return *cloneNode(node), nil
}

// Snapshot returns a consistent copy of the whole tree.
func (t *Tree) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Snapshot{
		ID:            t.ID,
		TenantID:      t.TenantID,
		CharacterID:   t.CharacterID,
		Nodes:         t.nodesLocked(),
		CurrentNodeID: t.current,
		CreatedAt:     t.createdAt,
		UpdatedAt:     t.updatedAt,
	}
}

// Validate checks the tree-shape invariants and returns every violation
// found, each wrapping ErrCorruptTree.
func (t *Tree) Validate() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var errs []error
	root, ok := t.nodes[model.RootNodeID]
	if !ok {
		errs = append(errs, fmt.Errorf("%w: missing root node", ErrCorruptTree))
	} else if root.ParentNodeID != "" && root.ParentNodeID != model.RootNodeID {
		errs = append(errs, fmt.Errorf("%w: root has parent %q", ErrCorruptTree, root.ParentNodeID))
	}
	if _, ok := t.nodes[t.current]; !ok {
		errs = append(errs, fmt.Errorf("%w: current node %q not found", ErrCorruptTree, t.current))
	}
	for _, id := range t.order {
		if id == model.RootNodeID {
			continue
		}
		if _, err := ComputeCurrentPath(t.nodes, id); err != nil {
			errs = append(errs, fmt.Errorf("node %q: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// MarshalJSON encodes the tree as its snapshot.
func (t *Tree) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Snapshot())
}

// UnmarshalJSON decodes a snapshot into the tree without validating it.
func (t *Tree) UnmarshalJSON(data []byte) error {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.clock == nil {
		t.clock = time.Now
	}
	t.load(s)
	return nil
}

// Index maps node ids to nodes of the snapshot. Later duplicates win.
func (s *Snapshot) Index() map[string]*model.DialogueNode {
	index := make(map[string]*model.DialogueNode, len(s.Nodes))
	for i := range s.Nodes {
		index[s.Nodes[i].NodeID] = &s.Nodes[i]
	}
	return index
}

func cloneNode(n *model.DialogueNode) *model.DialogueNode {
	c := *n
	if n.ParsedContent != nil {
		parsed := *n.ParsedContent
		c.ParsedContent = &parsed
	}
	return &c
}
