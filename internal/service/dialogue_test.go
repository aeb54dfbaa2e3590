package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/dialogue-tree/internal/dialogue"
	"github.com/capitalize-ai/dialogue-tree/internal/layout"
	"github.com/capitalize-ai/dialogue-tree/internal/model"
	"github.com/capitalize-ai/dialogue-tree/pkg/logger"
)

const (
	tenant    = "tenant-1"
	character = "alice"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []model.DialogueEvent
}

func (r *eventRecorder) DialogueChanged(_ context.Context, event *model.DialogueEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

func (r *eventRecorder) types() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// memoryEventLog is an in-process stand-in for the JetStream stream: it
// records published events and replays them per tenant and character.
type memoryEventLog struct {
	mu      sync.Mutex
	events  []model.DialogueEvent
	queries []string
}

func (m *memoryEventLog) DialogueChanged(_ context.Context, event *model.DialogueEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.Sequence = uint64(len(m.events) + 1)
	m.events = append(m.events, *event)
	return nil
}

func (m *memoryEventLog) GetEvents(_ context.Context, tenantID, characterID string, afterSequence uint64, limit int) ([]model.DialogueEvent, uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, tenantID+"/"+characterID)

	out := []model.DialogueEvent{}
	var last uint64
	for _, e := range m.events {
		if e.Sequence <= afterSequence || e.TenantID != tenantID || e.CharacterID != characterID {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, e)
		last = e.Sequence
	}
	return out, last, len(out) == limit, nil
}

func newTestService(t *testing.T, summary string, summaryErr error) (*DialogueService, *eventRecorder) {
	t.Helper()
	rec := &eventRecorder{}
	svc := NewDialogueService(Options{
		Notifier: rec,
		Summarizer: dialogue.SummarizerFunc(func(context.Context, string, model.ConnectionParams) (string, error) {
			return summary, summaryErr
		}),
		Layout: layout.DefaultOptions(),
	}, logger.NewNop())
	return svc, rec
}

func TestService_TreeNotFound(t *testing.T) {
	svc, _ := newTestService(t, "s", nil)
	ctx := context.Background()

	_, err := svc.GetDialogue(ctx, tenant, character)
	assert.ErrorIs(t, err, ErrTreeNotFound)

	_, err = svc.Switch(ctx, tenant, character, "a")
	assert.ErrorIs(t, err, ErrTreeNotFound)

	_, err = svc.Layout(ctx, tenant, character)
	assert.ErrorIs(t, err, ErrTreeNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, tenant, character), ErrTreeNotFound)
}

func TestService_TreesAreScopedByTenant(t *testing.T) {
	svc, _ := newTestService(t, "s", nil)
	ctx := context.Background()

	_, err := svc.Reset(ctx, tenant, character)
	require.NoError(t, err)

	_, err = svc.GetDialogue(ctx, "tenant-2", character)
	assert.ErrorIs(t, err, ErrTreeNotFound)
}

func TestService_AppendSwitchEdit(t *testing.T) {
	svc, rec := newTestService(t, "short form", nil)
	ctx := context.Background()

	snap, err := svc.Reset(ctx, tenant, character)
	require.NoError(t, err)
	assert.Equal(t, model.RootNodeID, snap.CurrentNodeID)

	a, err := svc.AppendTurn(ctx, tenant, character, &model.AppendTurnRequest{UserInput: "hi", AssistantResponse: "hello"})
	require.NoError(t, err)
	b, err := svc.AppendTurn(ctx, tenant, character, &model.AppendTurnRequest{UserInput: "go on", AssistantResponse: "and then"})
	require.NoError(t, err)
	c, err := svc.AppendTurn(ctx, tenant, character, &model.AppendTurnRequest{ParentNodeID: a.NodeID, UserInput: "other", AssistantResponse: "elsewhere"})
	require.NoError(t, err)

	path, err := svc.CurrentPath(ctx, tenant, character)
	require.NoError(t, err)
	assert.Equal(t, c.NodeID, path.CurrentNodeID)
	assert.Equal(t, []string{c.NodeID, a.NodeID}, path.Path)
	assert.True(t, path.ReachedRoot)

	result, err := svc.Switch(ctx, tenant, character, b.NodeID)
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, []string{b.NodeID, a.NodeID}, result.Path.IDs)

	_, err = svc.Switch(ctx, tenant, character, model.RootNodeID)
	assert.ErrorIs(t, err, dialogue.ErrInvalidTarget)

	edited, err := svc.Edit(ctx, tenant, character, a.NodeID, &model.EditNodeRequest{Content: "rewritten"})
	require.NoError(t, err)
	assert.Equal(t, "rewritten", edited.AssistantResponse)
	require.NotNil(t, edited.ParsedContent)
	assert.Equal(t, "short form", edited.ParsedContent.CompressedContent)

	thread, err := svc.Thread(ctx, tenant, character, b.NodeID)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, "rewritten", thread[0].AssistantResponse)

	assert.Equal(t, []model.EventType{
		model.EventTypeTreeCreated,
		model.EventTypeTurnAppended,
		model.EventTypeTurnAppended,
		model.EventTypeTurnAppended,
		model.EventTypeBranchSwitched,
		model.EventTypeNodeEdited,
	}, rec.types())
}

func TestService_EditUpstreamFailureKeepsNode(t *testing.T) {
	svc, _ := newTestService(t, "", errors.New("connection refused"))
	ctx := context.Background()

	_, err := svc.Reset(ctx, tenant, character)
	require.NoError(t, err)
	a, err := svc.AppendTurn(ctx, tenant, character, &model.AppendTurnRequest{UserInput: "hi", AssistantResponse: "hello"})
	require.NoError(t, err)

	_, err = svc.Edit(ctx, tenant, character, a.NodeID, &model.EditNodeRequest{Content: "new"})
	require.ErrorIs(t, err, dialogue.ErrUpstreamFailure)

	snap, err := svc.GetDialogue(ctx, tenant, character)
	require.NoError(t, err)
	node := snap.Index()[a.NodeID]
	assert.Equal(t, "hello", node.AssistantResponse)
	assert.Nil(t, node.ParsedContent)
}

func TestService_Layout(t *testing.T) {
	svc, _ := newTestService(t, "s", nil)
	ctx := context.Background()

	_, err := svc.Reset(ctx, tenant, character)
	require.NoError(t, err)
	_, err = svc.AppendTurn(ctx, tenant, character, &model.AppendTurnRequest{UserInput: "hi", AssistantResponse: "hello"})
	require.NoError(t, err)

	graph, err := svc.Layout(ctx, tenant, character)
	require.NoError(t, err)
	assert.Len(t, graph.Nodes, 2)
	assert.Len(t, graph.Edges, 1)
	assert.Empty(t, graph.Diagnostics)
}

func TestService_ImportValidates(t *testing.T) {
	svc, _ := newTestService(t, "s", nil)
	ctx := context.Background()

	bad := dialogue.Snapshot{
		Nodes: []model.DialogueNode{
			{NodeID: model.RootNodeID},
			{NodeID: "a", ParentNodeID: "ghost"},
		},
		CurrentNodeID: "a",
	}
	_, err := svc.Import(ctx, tenant, character, bad)
	require.ErrorIs(t, err, ErrInvalidSnapshot)
	assert.ErrorIs(t, err, dialogue.ErrCorruptTree)

	_, err = svc.GetDialogue(ctx, tenant, character)
	assert.ErrorIs(t, err, ErrTreeNotFound)

	good := dialogue.Snapshot{
		Nodes: []model.DialogueNode{
			{NodeID: model.RootNodeID},
			{NodeID: "a", ParentNodeID: model.RootNodeID, UserInput: "hi"},
		},
		CurrentNodeID: "a",
	}
	snap, err := svc.Import(ctx, tenant, character, good)
	require.NoError(t, err)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, character, snap.CharacterID)
	assert.Equal(t, "a", snap.CurrentNodeID)
}

func TestService_Events(t *testing.T) {
	svc, _ := newTestService(t, "s", nil)
	ctx := context.Background()
	_, err := svc.Reset(ctx, tenant, character)
	require.NoError(t, err)

	_, err = svc.Events(ctx, tenant, character, 0, 10)
	assert.ErrorIs(t, err, ErrEventsUnavailable)
}

func TestService_EventsScopedByTenant(t *testing.T) {
	events := &memoryEventLog{}
	svc := NewDialogueService(Options{
		Notifier: events,
		Events:   events,
		Layout:   layout.DefaultOptions(),
	}, logger.NewNop())
	ctx := context.Background()

	snapA, err := svc.Reset(ctx, "tenant-a", character)
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", snapA.TenantID)
	snapB, err := svc.Reset(ctx, "tenant-b", character)
	require.NoError(t, err)
	_, err = svc.AppendTurn(ctx, "tenant-a", character, &model.AppendTurnRequest{UserInput: "hi", AssistantResponse: "hello"})
	require.NoError(t, err)

	page, err := svc.Events(ctx, "tenant-b", character, 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	assert.Equal(t, "tenant-b", page.Events[0].TenantID)
	assert.Equal(t, snapB.ID, page.Events[0].TreeID)
	assert.Equal(t, model.EventTypeTreeCreated, page.Events[0].Type)

	page, err = svc.Events(ctx, "tenant-a", character, 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Events, 2)
	for _, e := range page.Events {
		assert.Equal(t, "tenant-a", e.TenantID)
		assert.Equal(t, snapA.ID, e.TreeID)
	}

	assert.Equal(t, []string{"tenant-b/" + character, "tenant-a/" + character}, events.queries)
}

func TestService_EventsSkipEarlierTrees(t *testing.T) {
	events := &memoryEventLog{}
	svc := NewDialogueService(Options{
		Notifier: events,
		Events:   events,
		Layout:   layout.DefaultOptions(),
	}, logger.NewNop())
	ctx := context.Background()

	_, err := svc.Reset(ctx, tenant, character)
	require.NoError(t, err)
	_, err = svc.AppendTurn(ctx, tenant, character, &model.AppendTurnRequest{UserInput: "hi", AssistantResponse: "hello"})
	require.NoError(t, err)
	fresh, err := svc.Reset(ctx, tenant, character)
	require.NoError(t, err)

	page, err := svc.Events(ctx, tenant, character, 0, 2)
	require.NoError(t, err)
	assert.Empty(t, page.Events)
	assert.Equal(t, uint64(2), page.LastSequence)
	assert.True(t, page.HasMore)

	page, err = svc.Events(ctx, tenant, character, page.LastSequence, 2)
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	assert.Equal(t, fresh.ID, page.Events[0].TreeID)
	assert.Equal(t, uint64(3), page.LastSequence)
	assert.False(t, page.HasMore)
}

func TestService_Delete(t *testing.T) {
	svc, _ := newTestService(t, "s", nil)
	ctx := context.Background()
	_, err := svc.Reset(ctx, tenant, character)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, tenant, character))
	_, err = svc.GetDialogue(ctx, tenant, character)
	assert.ErrorIs(t, err, ErrTreeNotFound)
}
