// Package model defines data structures for the branching dialogue service.
package model

import (
	"time"
)

// RootNodeID is reserved for the synthetic origin node of every dialogue tree.
const RootNodeID = "root"

// DialogueNode is one conversational turn. Nodes are treated as immutable
// except for their response content, which the content editor may replace.
type DialogueNode struct {
	NodeID            string         `json:"node_id"`
	ParentNodeID      string         `json:"parent_node_id,omitempty"`
	UserInput         string         `json:"user_input"`
	AssistantResponse string         `json:"assistant_response"`
	FullResponse      string         `json:"full_response"`
	ParsedContent     *ParsedContent `json:"parsed_content,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

// IsRoot reports whether the node is the tree's origin.
func (n *DialogueNode) IsRoot() bool {
	return n.NodeID == RootNodeID
}

// ParsedContent is the structured derivative of a response.
type ParsedContent struct {
	CompressedContent string    `json:"compressedContent"`
	GeneratedAt       time.Time `json:"generatedAt,omitempty"`
}

// ConnectionParams carries what the summarizer needs to reach a model.
type ConnectionParams struct {
	Endpoint   string `json:"endpoint,omitempty"`
	Credential string `json:"-"`
	Transport  string `json:"transport,omitempty"`
	Locale     string `json:"locale,omitempty"`
	Model      string `json:"model,omitempty"`
}

// AppendTurnRequest is the request to record a newly generated turn.
type AppendTurnRequest struct {
	ParentNodeID      string `json:"parent_node_id,omitempty"`
	UserInput         string `json:"user_input"`
	AssistantResponse string `json:"assistant_response"`
	FullResponse      string `json:"full_response,omitempty"`
}

// SwitchBranchRequest is the request to make another node current.
type SwitchBranchRequest struct {
	NodeID string `json:"node_id"`
}

// SwitchBranchResponse is the response after a branch switch.
type SwitchBranchResponse struct {
	CurrentNodeID string   `json:"current_node_id"`
	Changed       bool     `json:"changed"`
	Path          []string `json:"path"`
}

// EditNodeRequest is the request to replace a node's response text.
type EditNodeRequest struct {
	Content string `json:"content"`
	Locale  string `json:"locale,omitempty"`
	Model   string `json:"model,omitempty"`
}

// CurrentPathResponse is the response for the current path endpoint.
type CurrentPathResponse struct {
	CurrentNodeID string   `json:"current_node_id"`
	Path          []string `json:"path"`
	ReachedRoot   bool     `json:"reached_root"`
}

// ErrorResponse is the JSON error body returned by the API.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
