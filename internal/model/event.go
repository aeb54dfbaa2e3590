package model

import (
	"time"
)

// EventType represents the type of dialogue event.
type EventType string

const (
	EventTypeTreeCreated    EventType = "tree_created"
	EventTypeTurnAppended   EventType = "turn_appended"
	EventTypeBranchSwitched EventType = "branch_switched"
	EventTypeNodeEdited     EventType = "node_edited"
)

// DialogueEvent tells the conversation-state side that dialogue content changed.
type DialogueEvent struct {
	ID            string         `json:"id"`
	TreeID        string         `json:"tree_id"`
	TenantID      string         `json:"tenant_id"`
	CharacterID   string         `json:"character_id"`
	Type          EventType      `json:"type"`
	NodeID        string         `json:"node_id,omitempty"`
	CurrentNodeID string         `json:"current_node_id"`
	Reason        string         `json:"reason,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	Sequence      uint64         `json:"sequence,omitempty"`
}
