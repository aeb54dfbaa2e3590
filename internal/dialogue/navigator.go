package dialogue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/dialogue-tree/internal/model"
	"github.com/capitalize-ai/dialogue-tree/pkg/logger"
)

// Notifier is told about dialogue changes so the conversation-state side can
// reload its active context.
type Notifier interface {
	DialogueChanged(ctx context.Context, event *model.DialogueEvent) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, event *model.DialogueEvent) error

// DialogueChanged calls f.
func (f NotifierFunc) DialogueChanged(ctx context.Context, event *model.DialogueEvent) error {
	return f(ctx, event)
}

// SwitchResult describes the outcome of a branch switch.
type SwitchResult struct {
	CurrentNodeID string
	Changed       bool
	Path          Path
}

// Navigator moves trees between branches. At most one switch per tree is in
// flight; requests arriving meanwhile are dropped with ErrSwitchInFlight.
type Navigator struct {
	notifier Notifier
	logger   *logger.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewNavigator creates a navigator that reports switches to notifier.
func NewNavigator(notifier Notifier, log *logger.Logger) *Navigator {
	return &Navigator{
		notifier: notifier,
		logger:   log,
		inflight: make(map[string]struct{}),
	}
}

// Switch makes targetNodeID the current node of tree. Switching to the node
// that is already current succeeds without notifying anyone.
func (n *Navigator) Switch(ctx context.Context, tree *Tree, targetNodeID string) (*SwitchResult, error) {
	if targetNodeID == model.RootNodeID {
		return nil, ErrInvalidTarget
	}
	if !n.acquire(tree.ID) {
		return nil, ErrSwitchInFlight
	}
	defer n.release(tree.ID)

	changed, err := tree.switchTo(targetNodeID)
	if err != nil {
		return nil, err
	}

	path, err := tree.CurrentPath()
	if err != nil {
		n.logger.Warn("current path is incomplete",
			zap.String("tree_id", tree.ID),
			zap.String("node_id", targetNodeID),
			zap.Error(err),
		)
	}

	if changed && n.notifier != nil {
		event := &model.DialogueEvent{
			ID:            uuid.Must(uuid.NewV7()).String(),
			TreeID:        tree.ID,
			TenantID:      tree.TenantID,
			CharacterID:   tree.CharacterID,
			Type:          model.EventTypeBranchSwitched,
			NodeID:        targetNodeID,
			CurrentNodeID: targetNodeID,
			CreatedAt:     time.Now(),
		}
		// The tree is authoritative; a failed notification only delays the reload.
		if err := n.notifier.DialogueChanged(ctx, event); err != nil {
			n.logger.Warn("failed to notify branch switch",
				zap.String("tree_id", tree.ID),
				zap.String("node_id", targetNodeID),
				zap.Error(err),
			)
		}
	}

	return &SwitchResult{
		CurrentNodeID: targetNodeID,
		Changed:       changed,
		Path:          path,
	}, nil
}

// InFlight reports whether a switch is running for the tree.
func (n *Navigator) InFlight(treeID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.inflight[treeID]
	return ok
}

func (n *Navigator) acquire(treeID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, busy := n.inflight[treeID]; busy {
		return false
	}
	n.inflight[treeID] = struct{}{}
	return true
}

func (n *Navigator) release(treeID string) {
	n.mu.Lock()
	delete(n.inflight, treeID)
	n.mu.Unlock()
}
