package llm

import (
	"context"
	"errors"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-3-5-haiku-20241022"

// AnthropicClient is the Anthropic LLM client.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(cfg Config) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
	}, nil
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return string(ProviderAnthropic)
}

// DefaultModel returns the model used when none is requested.
func (c *AnthropicClient) DefaultModel() string {
	return defaultAnthropicModel
}

// Complete sends a completion request.
func (c *AnthropicClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = defaultAnthropicModel
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	// Convert messages to Anthropic format
	messages := make([]anthropic.MessageParam, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = anthropic.MessageParam{
			Role: anthropic.F(anthropic.MessageParamRole(msg.Role)),
			Content: anthropic.F([]anthropic.ContentBlockParamUnion{
				anthropic.TextBlockParam{
					Type: anthropic.F(anthropic.TextBlockParamTypeText),
					Text: anthropic.F(msg.Content),
				},
			}),
		}
	}

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.F(model),
		MaxTokens: anthropic.F(int64(maxTokens)),
		Messages:  anthropic.F(messages),
	})
	if err != nil {
		return nil, err
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			content += block.Text
		}
	}

	return &CompletionResponse{
		Content:    content,
		Model:      resp.Model,
		TokensIn:   int(resp.Usage.InputTokens),
		TokensOut:  int(resp.Usage.OutputTokens),
		StopReason: string(resp.StopReason),
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}
