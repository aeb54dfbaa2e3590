package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/capitalize-ai/dialogue-tree/internal/model"
	"github.com/capitalize-ai/dialogue-tree/pkg/logger"
)

// LoggingNotifier logs dialogue changes. It is used when NATS is disabled.
type LoggingNotifier struct {
	logger *logger.Logger
}

// NewLoggingNotifier creates a notifier that only logs.
func NewLoggingNotifier(log *logger.Logger) *LoggingNotifier {
	return &LoggingNotifier{logger: log}
}

// DialogueChanged logs the event.
func (n *LoggingNotifier) DialogueChanged(ctx context.Context, event *model.DialogueEvent) error {
	n.logger.Debug("dialogue changed",
		zap.String("event_id", event.ID),
		zap.String("tree_id", event.TreeID),
		zap.String("character_id", event.CharacterID),
		zap.String("type", string(event.Type)),
		zap.String("node_id", event.NodeID),
		zap.String("current_node_id", event.CurrentNodeID),
	)
	return nil
}
