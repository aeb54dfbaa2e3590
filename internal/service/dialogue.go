// Package service provides business logic for the branching dialogue service.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/capitalize-ai/dialogue-tree/internal/dialogue"
	"github.com/capitalize-ai/dialogue-tree/internal/layout"
	"github.com/capitalize-ai/dialogue-tree/internal/model"
	"github.com/capitalize-ai/dialogue-tree/pkg/logger"
	"github.com/capitalize-ai/dialogue-tree/pkg/metrics"
	"github.com/capitalize-ai/dialogue-tree/pkg/tracing"
)

var (
	// ErrTreeNotFound is returned when a character has no dialogue tree.
	ErrTreeNotFound = errors.New("dialogue tree not found")

	// ErrInvalidSnapshot is returned when an imported tree fails validation.
	ErrInvalidSnapshot = errors.New("invalid dialogue snapshot")

	// ErrEventsUnavailable is returned when no event log is configured.
	ErrEventsUnavailable = errors.New("event log not available")
)

// EventLog replays published dialogue events.
type EventLog interface {
	GetEvents(ctx context.Context, tenantID, characterID string, afterSequence uint64, limit int) ([]model.DialogueEvent, uint64, bool, error)
}

// EventPage is one page of replayed events.
type EventPage struct {
	Events       []model.DialogueEvent `json:"events"`
	LastSequence uint64                `json:"last_sequence"`
	HasMore      bool                  `json:"has_more"`
}

// DialogueService handles dialogue tree operations.
type DialogueService struct {
	navigator *dialogue.Navigator
	editor    *dialogue.Editor
	notifier  dialogue.Notifier
	events    EventLog
	layout    layout.Options
	logger    *logger.Logger

	// In-memory storage for trees, keyed by tenant and character.
	trees map[string]*dialogue.Tree
	mu    sync.RWMutex
}

// Options configures a DialogueService.
type Options struct {
	Notifier   dialogue.Notifier
	Summarizer dialogue.Summarizer
	Events     EventLog
	Layout     layout.Options
}

// NewDialogueService creates a new dialogue service.
func NewDialogueService(opts Options, log *logger.Logger) *DialogueService {
	if opts.Notifier == nil {
		opts.Notifier = NewLoggingNotifier(log)
	}
	return &DialogueService{
		navigator: dialogue.NewNavigator(opts.Notifier, log),
		editor:    dialogue.NewEditor(opts.Summarizer, opts.Notifier, log),
		notifier:  opts.Notifier,
		events:    opts.Events,
		layout:    opts.Layout,
		logger:    log,
		trees:     make(map[string]*dialogue.Tree),
	}
}

func treeKey(tenantID, characterID string) string {
	return tenantID + "/" + characterID
}

func (s *DialogueService) tree(tenantID, characterID string) (*dialogue.Tree, error) {
	s.mu.RLock()
	tree, exists := s.trees[treeKey(tenantID, characterID)]
	s.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: character %q", ErrTreeNotFound, characterID)
	}
	return tree, nil
}

func (s *DialogueService) store(tenantID, characterID string, tree *dialogue.Tree) {
	s.mu.Lock()
	key := treeKey(tenantID, characterID)
	if _, exists := s.trees[key]; !exists {
		metrics.DialogueTreesActive.Inc()
	}
	s.trees[key] = tree
	s.mu.Unlock()
}

// Reset starts a fresh tree for the character, replacing any existing one.
func (s *DialogueService) Reset(ctx context.Context, tenantID, characterID string) (dialogue.Snapshot, error) {
	tree := dialogue.New(characterID)
	tree.TenantID = tenantID
	s.store(tenantID, characterID, tree)

	s.logger.Info("dialogue tree created",
		zap.String("tree_id", tree.ID),
		zap.String("tenant_id", tenantID),
		zap.String("character_id", characterID),
	)
	s.notify(ctx, tree, model.EventTypeTreeCreated, model.RootNodeID)

	return tree.Snapshot(), nil
}

// Import replaces the character's tree with a stored snapshot. The snapshot
// must pass validation.
func (s *DialogueService) Import(ctx context.Context, tenantID, characterID string, snap dialogue.Snapshot) (dialogue.Snapshot, error) {
	snap.TenantID = tenantID
	snap.CharacterID = characterID
	if snap.ID == "" {
		snap.ID = uuid.Must(uuid.NewV7()).String()
	}
	tree := dialogue.FromSnapshot(snap)
	if err := tree.Validate(); err != nil {
		metrics.RecordCorruption("import")
		return dialogue.Snapshot{}, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	s.store(tenantID, characterID, tree)

	s.logger.Info("dialogue tree imported",
		zap.String("tree_id", tree.ID),
		zap.String("tenant_id", tenantID),
		zap.String("character_id", characterID),
		zap.Int("nodes", tree.Len()),
	)
	s.notify(ctx, tree, model.EventTypeTreeCreated, tree.CurrentNodeID())

	return tree.Snapshot(), nil
}

// GetDialogue returns a snapshot of the character's tree. It is what the chat
// view reloads from after a change notification.
func (s *DialogueService) GetDialogue(ctx context.Context, tenantID, characterID string) (dialogue.Snapshot, error) {
	tree, err := s.tree(tenantID, characterID)
	if err != nil {
		return dialogue.Snapshot{}, err
	}
	return tree.Snapshot(), nil
}

// Delete drops the character's tree.
func (s *DialogueService) Delete(ctx context.Context, tenantID, characterID string) error {
	s.mu.Lock()
	key := treeKey(tenantID, characterID)
	tree, exists := s.trees[key]
	if exists {
		delete(s.trees, key)
		metrics.DialogueTreesActive.Dec()
	}
	s.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: character %q", ErrTreeNotFound, characterID)
	}

	s.logger.Info("dialogue tree deleted",
		zap.String("tree_id", tree.ID),
		zap.String("tenant_id", tenantID),
		zap.String("character_id", characterID),
	)
	return nil
}

// AppendTurn records a generated turn and makes it current.
func (s *DialogueService) AppendTurn(ctx context.Context, tenantID, characterID string, req *model.AppendTurnRequest) (model.DialogueNode, error) {
	tree, err := s.tree(tenantID, characterID)
	if err != nil {
		return model.DialogueNode{}, err
	}

	node, err := tree.Append(req)
	if err != nil {
		return model.DialogueNode{}, err
	}
	metrics.TurnsAppendedTotal.Inc()

	s.logger.Debug("turn appended",
		zap.String("tree_id", tree.ID),
		zap.String("node_id", node.NodeID),
		zap.String("parent_node_id", node.ParentNodeID),
	)
	s.notify(ctx, tree, model.EventTypeTurnAppended, node.NodeID)

	return node, nil
}

// Switch makes nodeID the current node of the character's tree.
func (s *DialogueService) Switch(ctx context.Context, tenantID, characterID, nodeID string) (*dialogue.SwitchResult, error) {
	ctx, span := tracing.Tracer().Start(ctx, "dialogue.Switch")
	defer span.End()
	span.SetAttributes(
		attribute.String("dialogue.character_id", characterID),
		attribute.String("dialogue.node_id", nodeID),
	)

	tree, err := s.tree(tenantID, characterID)
	if err != nil {
		return nil, err
	}

	result, err := s.navigator.Switch(ctx, tree, nodeID)
	if err != nil {
		metrics.RecordSwitch(resultLabel(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "switch failed")
		return nil, err
	}

	if result.Changed {
		metrics.RecordSwitch("switched")
	} else {
		metrics.RecordSwitch("unchanged")
	}
	if !result.Path.ReachedRoot {
		metrics.RecordCorruption("path_incomplete")
	}

	s.logger.Info("branch switched",
		zap.String("tree_id", tree.ID),
		zap.String("node_id", nodeID),
		zap.Bool("changed", result.Changed),
	)
	return result, nil
}

// Edit replaces a node's assistant response and its summary.
func (s *DialogueService) Edit(ctx context.Context, tenantID, characterID, nodeID string, req *model.EditNodeRequest) (*model.DialogueNode, error) {
	ctx, span := tracing.Tracer().Start(ctx, "dialogue.Edit")
	defer span.End()
	span.SetAttributes(
		attribute.String("dialogue.character_id", characterID),
		attribute.String("dialogue.node_id", nodeID),
	)

	tree, err := s.tree(tenantID, characterID)
	if err != nil {
		return nil, err
	}

	conn := model.ConnectionParams{
		Locale: req.Locale,
		Model:  req.Model,
	}
	node, err := s.editor.EditNodeContent(ctx, tree, nodeID, req.Content, conn)
	if err != nil {
		metrics.RecordEdit(resultLabel(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "edit failed")
		return nil, err
	}
	metrics.RecordEdit("edited")

	s.logger.Info("node edited",
		zap.String("tree_id", tree.ID),
		zap.String("node_id", nodeID),
		zap.Int("content_length", len(req.Content)),
	)
	return node, nil
}

// CurrentPath returns the path from the current node up to root.
func (s *DialogueService) CurrentPath(ctx context.Context, tenantID, characterID string) (*model.CurrentPathResponse, error) {
	tree, err := s.tree(tenantID, characterID)
	if err != nil {
		return nil, err
	}

	current := tree.CurrentNodeID()
	path, err := tree.CurrentPath()
	if err != nil {
		metrics.RecordCorruption("path_incomplete")
		s.logger.Error("current path is incomplete",
			zap.String("tree_id", tree.ID),
			zap.String("current_node_id", current),
			zap.Error(err),
		)
		return nil, err
	}

	return &model.CurrentPathResponse{
		CurrentNodeID: current,
		Path:          path.IDs,
		ReachedRoot:   path.ReachedRoot,
	}, nil
}

// Thread returns the turns leading to nodeID, oldest first.
func (s *DialogueService) Thread(ctx context.Context, tenantID, characterID, nodeID string) ([]model.DialogueNode, error) {
	tree, err := s.tree(tenantID, characterID)
	if err != nil {
		return nil, err
	}
	return tree.Thread(nodeID)
}

// Layout lays out the character's tree for the graph view.
func (s *DialogueService) Layout(ctx context.Context, tenantID, characterID string) (*layout.Graph, error) {
	tree, err := s.tree(tenantID, characterID)
	if err != nil {
		return nil, err
	}

	graph := layout.Build(tree.Snapshot(), s.layout)
	for _, d := range graph.Diagnostics {
		metrics.RecordCorruption(d.Kind)
		s.logger.Warn("layout diagnostic",
			zap.String("tree_id", tree.ID),
			zap.String("kind", d.Kind),
			zap.String("node_id", d.NodeID),
			zap.String("message", d.Message),
		)
	}
	return graph, nil
}

// Events replays change notifications published for the character's
// current tree. Events of earlier trees of the same character are skipped,
// but still advance LastSequence so paging moves past them.
func (s *DialogueService) Events(ctx context.Context, tenantID, characterID string, afterSequence uint64, limit int) (*EventPage, error) {
	tree, err := s.tree(tenantID, characterID)
	if err != nil {
		return nil, err
	}
	if s.events == nil {
		return nil, ErrEventsUnavailable
	}

	events, lastSeq, hasMore, err := s.events.GetEvents(ctx, tenantID, characterID, afterSequence, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}

	current := make([]model.DialogueEvent, 0, len(events))
	for _, e := range events {
		if e.TenantID == tenantID && e.TreeID == tree.ID {
			current = append(current, e)
		}
	}

	return &EventPage{
		Events:       current,
		LastSequence: lastSeq,
		HasMore:      hasMore,
	}, nil
}

func (s *DialogueService) notify(ctx context.Context, tree *dialogue.Tree, eventType model.EventType, nodeID string) {
	event := &model.DialogueEvent{
		ID:            uuid.Must(uuid.NewV7()).String(),
		TreeID:        tree.ID,
		TenantID:      tree.TenantID,
		CharacterID:   tree.CharacterID,
		Type:          eventType,
		NodeID:        nodeID,
		CurrentNodeID: tree.CurrentNodeID(),
		CreatedAt:     time.Now(),
	}
	if err := s.notifier.DialogueChanged(ctx, event); err != nil {
		s.logger.Warn("failed to notify dialogue change",
			zap.String("tree_id", tree.ID),
			zap.String("event_type", string(eventType)),
			zap.Error(err),
		)
	}
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, dialogue.ErrNotFound):
		return "not_found"
	case errors.Is(err, dialogue.ErrInvalidTarget):
		return "invalid_target"
	case errors.Is(err, dialogue.ErrSwitchInFlight), errors.Is(err, dialogue.ErrEditInFlight):
		return "in_flight"
	case errors.Is(err, dialogue.ErrUpstreamFailure):
		return "upstream_failure"
	case errors.Is(err, dialogue.ErrCorruptTree):
		return "corrupt_tree"
	default:
		return "error"
	}
}
