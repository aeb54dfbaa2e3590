package dialogue

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/dialogue-tree/internal/model"
)

// stepClock returns a clock that advances one second per call.
func stepClock() func() time.Time {
	t := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func appendTurn(t *testing.T, tr *Tree, parent, input, response string) model.DialogueNode {
	t.Helper()
	n, err := tr.Append(&model.AppendTurnRequest{
		ParentNodeID:      parent,
		UserInput:         input,
		AssistantResponse: response,
	})
	require.NoError(t, err)
	return n
}

// chainTree builds root -> A -> B with B current.
func chainTree(t *testing.T) (*Tree, model.DialogueNode, model.DialogueNode) {
	t.Helper()
	tr := newTree("char-1", stepClock())
	a := appendTurn(t, tr, "", "hi", "foo")
	b := appendTurn(t, tr, "", "how are you", "fine")
	return tr, a, b
}

func TestNew_RootOnly(t *testing.T) {
	tr := New("char-1")
	assert.Equal(t, 1, tr.Len())
	assert.Equal(t, model.RootNodeID, tr.CurrentNodeID())
	assert.NotEmpty(t, tr.ID)
	assert.Equal(t, "char-1", tr.CharacterID)
	require.NoError(t, tr.Validate())

	root, ok := tr.Node(model.RootNodeID)
	require.True(t, ok)
	assert.True(t, root.IsRoot())
	assert.Empty(t, root.ParentNodeID)
}

func TestAppend_ChildOfCurrent(t *testing.T) {
	tr, a, b := chainTree(t)

	assert.Equal(t, model.RootNodeID, a.ParentNodeID)
	assert.Equal(t, a.NodeID, b.ParentNodeID)
	assert.Equal(t, b.NodeID, tr.CurrentNodeID())
	assert.Equal(t, "foo", a.FullResponse)
	assert.Equal(t, 3, tr.Len())
	require.NoError(t, tr.Validate())
}

func TestAppend_UnknownParent(t *testing.T) {
	tr := New("char-1")
	before := tr.UpdatedAt()

	_, err := tr.Append(&model.AppendTurnRequest{ParentNodeID: "nope", AssistantResponse: "x"})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, tr.Len())
	assert.Equal(t, before, tr.UpdatedAt())
}

func TestChildrenSiblingsThread(t *testing.T) {
	tr, a, b := chainTree(t)
	c := appendTurn(t, tr, a.NodeID, "retry", "other reply")

	assert.Equal(t, []string{a.NodeID}, tr.Children(model.RootNodeID))
	assert.Equal(t, []string{b.NodeID, c.NodeID}, tr.Children(a.NodeID))
	assert.Equal(t, []string{c.NodeID}, tr.Siblings(b.NodeID))
	assert.Nil(t, tr.Siblings(model.RootNodeID))
	assert.Nil(t, tr.Children("missing"))

	thread, err := tr.Thread(b.NodeID)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, a.NodeID, thread[0].NodeID)
	assert.Equal(t, b.NodeID, thread[1].NodeID)

	_, err = tr.Thread("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNodes_ReturnsCopies(t *testing.T) {
	tr, a, _ := chainTree(t)
	nodes := tr.Nodes()
	nodes[1].AssistantResponse = "mutated"

	got, ok := tr.Node(a.NodeID)
	require.True(t, ok)
	assert.Equal(t, "foo", got.AssistantResponse)
}

func TestValidate_DanglingParent(t *testing.T) {
	snap := Snapshot{
		ID:          "t1",
		CharacterID: "c1",
		Nodes: []model.DialogueNode{
			{NodeID: model.RootNodeID},
			{NodeID: "a", ParentNodeID: model.RootNodeID},
			{NodeID: "orphan", ParentNodeID: "ghost"},
		},
		CurrentNodeID: "a",
	}
	tr := FromSnapshot(snap)

	err := tr.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorruptTree))
	assert.Contains(t, err.Error(), "ghost")
}

func TestValidate_MissingRootAndCycle(t *testing.T) {
	tr := FromSnapshot(Snapshot{
		Nodes: []model.DialogueNode{
			{NodeID: "a", ParentNodeID: "b"},
			{NodeID: "b", ParentNodeID: "a"},
		},
	})
	err := tr.Validate()
	require.ErrorIs(t, err, ErrCorruptTree)
	assert.Contains(t, err.Error(), "missing root")
	assert.Contains(t, err.Error(), "cycle")
}

func TestTreeJSON(t *testing.T) {
	tr, _, b := chainTree(t)

	data, err := json.Marshal(tr)
	require.NoError(t, err)

	var decoded Tree
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, tr.ID, decoded.ID)
	assert.Equal(t, b.NodeID, decoded.CurrentNodeID())
	assert.Equal(t, tr.Nodes(), decoded.Nodes())
	require.NoError(t, decoded.Validate())
}
