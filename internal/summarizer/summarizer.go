// Package summarizer produces compressed summaries of edited responses by
// calling an LLM over the transport named in the connection parameters.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/capitalize-ai/dialogue-tree/internal/llm"
	"github.com/capitalize-ai/dialogue-tree/internal/model"
	"github.com/capitalize-ai/dialogue-tree/pkg/logger"
	"github.com/capitalize-ai/dialogue-tree/pkg/metrics"
	"github.com/capitalize-ai/dialogue-tree/pkg/tracing"
)

// ErrEmptySummary is returned when the model answered with no usable text.
var ErrEmptySummary = errors.New("model returned an empty summary")

// ClientFactory builds the LLM client for one call.
type ClientFactory func(provider llm.Provider, cfg llm.Config) (llm.Client, error)

// LLMSummarizer summarizes text with an LLM. Fields left empty in the
// per-call connection fall back to Defaults. Calls are not retried.
type LLMSummarizer struct {
	Defaults  model.ConnectionParams
	Timeout   time.Duration
	MaxTokens int

	newClient ClientFactory
	logger    *logger.Logger
}

// New creates a summarizer using the real provider clients.
func New(defaults model.ConnectionParams, timeout time.Duration, log *logger.Logger) *LLMSummarizer {
	return NewWithFactory(defaults, timeout, llm.NewClient, log)
}

// NewWithFactory creates a summarizer with a custom client factory.
func NewWithFactory(defaults model.ConnectionParams, timeout time.Duration, factory ClientFactory, log *logger.Logger) *LLMSummarizer {
	return &LLMSummarizer{
		Defaults:  defaults,
		Timeout:   timeout,
		MaxTokens: 256,
		newClient: factory,
		logger:    log,
	}
}

// Summarize returns the compressed form of text.
func (s *LLMSummarizer) Summarize(ctx context.Context, text string, conn model.ConnectionParams) (string, error) {
	conn = s.merge(conn)

	provider, err := llm.ParseProvider(conn.Transport)
	if err != nil {
		return "", err
	}

	ctx, span := tracing.Tracer().Start(ctx, "summarizer.Summarize")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.transport", string(provider)),
		attribute.String("llm.locale", conn.Locale),
		attribute.Int("text.length", len(text)),
	)

	client, err := s.newClient(provider, llm.Config{
		APIKey:  conn.Credential,
		BaseURL: conn.Endpoint,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "client setup failed")
		return "", fmt.Errorf("failed to create %s client: %w", provider, err)
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := client.Complete(ctx, &llm.CompletionRequest{
		Model:       conn.Model,
		Messages:    []llm.ChatMessage{{Role: "user", Content: BuildPrompt(text, conn.Locale)}},
		MaxTokens:   s.MaxTokens,
		Temperature: 0.2,
	})
	duration := time.Since(start).Seconds()
	if err != nil {
		metrics.RecordSummary(string(provider), "", "error", duration, 0, 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		s.logger.Warn("summarizer call failed",
			zap.String("transport", string(provider)),
			zap.Error(err),
		)
		return "", fmt.Errorf("summarize with %s: %w", provider, err)
	}

	summary := CleanSummary(resp.Content)
	if summary == "" {
		metrics.RecordSummary(string(provider), resp.Model, "empty", duration, resp.TokensIn, resp.TokensOut)
		span.SetStatus(codes.Error, "empty summary")
		return "", ErrEmptySummary
	}

	metrics.RecordSummary(string(provider), resp.Model, "success", duration, resp.TokensIn, resp.TokensOut)
	s.logger.Debug("summary generated",
		zap.String("transport", string(provider)),
		zap.String("model", resp.Model),
		zap.Int64("latency_ms", resp.LatencyMs),
	)
	return summary, nil
}

func (s *LLMSummarizer) merge(conn model.ConnectionParams) model.ConnectionParams {
	if conn.Endpoint == "" {
		conn.Endpoint = s.Defaults.Endpoint
	}
	if conn.Credential == "" {
		conn.Credential = s.Defaults.Credential
	}
	if conn.Transport == "" {
		conn.Transport = s.Defaults.Transport
	}
	if conn.Locale == "" {
		conn.Locale = s.Defaults.Locale
	}
	if conn.Model == "" {
		conn.Model = s.Defaults.Model
	}
	return conn
}
