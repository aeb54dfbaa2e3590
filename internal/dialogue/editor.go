package dialogue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/dialogue-tree/internal/model"
	"github.com/capitalize-ai/dialogue-tree/pkg/logger"
)

// Summarizer produces the compressed representation of a response.
type Summarizer interface {
	Summarize(ctx context.Context, text string, conn model.ConnectionParams) (string, error)
}

// SummarizerFunc adapts a function to Summarizer.
type SummarizerFunc func(ctx context.Context, text string, conn model.ConnectionParams) (string, error)

// Summarize calls f.
func (f SummarizerFunc) Summarize(ctx context.Context, text string, conn model.ConnectionParams) (string, error) {
	return f(ctx, text, conn)
}

// Editor replaces node responses in place. An edit only lands together with
// a fresh summary; the tree shape and every other node stay untouched.
type Editor struct {
	summarizer Summarizer
	notifier   Notifier
	logger     *logger.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewEditor creates an editor.
func NewEditor(summarizer Summarizer, notifier Notifier, log *logger.Logger) *Editor {
	return &Editor{
		summarizer: summarizer,
		notifier:   notifier,
		logger:     log,
		inflight:   make(map[string]struct{}),
	}
}

// EditNodeContent sets the node's assistant response to newText and stores
// the summary returned for it. If summarizing fails the node keeps its old
// content and an error wrapping ErrUpstreamFailure is returned.
func (e *Editor) EditNodeContent(ctx context.Context, tree *Tree, nodeID, newText string, conn model.ConnectionParams) (*model.DialogueNode, error) {
	if _, ok := tree.Node(nodeID); !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, nodeID)
	}

	key := tree.ID + "/" + nodeID
	if !e.acquire(key) {
		return nil, ErrEditInFlight
	}
	defer e.release(key)

	if e.summarizer == nil {
		return nil, fmt.Errorf("%w: no summarizer configured", ErrUpstreamFailure)
	}
	summary, err := e.summarizer.Summarize(ctx, newText, conn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamFailure, err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil, fmt.Errorf("%w: empty summary", ErrUpstreamFailure)
	}

	node, err := tree.applyEdit(nodeID, newText, &model.ParsedContent{
		CompressedContent: summary,
		GeneratedAt:       time.Now(),
	})
	if err != nil {
		return nil, err
	}

	if e.notifier != nil {
		event := &model.DialogueEvent{
			ID:            uuid.Must(uuid.NewV7()).String(),
			TreeID:        tree.ID,
			TenantID:      tree.TenantID,
			CharacterID:   tree.CharacterID,
			Type:          model.EventTypeNodeEdited,
			NodeID:        nodeID,
			CurrentNodeID: tree.CurrentNodeID(),
			CreatedAt:     time.Now(),
		}
		if err := e.notifier.DialogueChanged(ctx, event); err != nil {
			e.logger.Warn("failed to notify node edit",
				zap.String("tree_id", tree.ID),
				zap.String("node_id", nodeID),
				zap.Error(err),
			)
		}
	}

	return &node, nil
}

func (e *Editor) acquire(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inflight[key]; busy {
		return false
	}
	e.inflight[key] = struct{}{}
	return true
}

func (e *Editor) release(key string) {
	e.mu.Lock()
	delete(e.inflight, key)
	e.mu.Unlock()
}
