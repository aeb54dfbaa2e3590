// Package llm provides LLM client interfaces and implementations.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// ChatMessage represents a chat message for LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string

	// DefaultModel is used when a request does not name a model.
	DefaultModel() string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// ParseProvider maps a transport name to a provider.
func ParseProvider(name string) (Provider, error) {
	switch Provider(strings.ToLower(strings.TrimSpace(name))) {
	case ProviderAnthropic, "claude":
		return ProviderAnthropic, nil
	case ProviderOpenAI, "openai-compatible", "":
		return ProviderOpenAI, nil
	default:
		return "", fmt.Errorf("unknown LLM transport %q", name)
	}
}

// Config selects the account and endpoint a client talks to.
type Config struct {
	APIKey string
	// BaseURL overrides the provider's default endpoint when set.
	BaseURL string
}

// NewClient creates a new LLM client based on provider.
func NewClient(provider Provider, cfg Config) (Client, error) {
	switch provider {
	case ProviderAnthropic:
		return NewAnthropicClient(cfg)
	case ProviderOpenAI:
		return NewOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}
}
