package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/dialogue-tree/internal/dialogue"
	"github.com/capitalize-ai/dialogue-tree/internal/model"
	"github.com/capitalize-ai/dialogue-tree/pkg/metrics"
)

const (
	// StreamName is the name of the dialogue events stream.
	StreamName = "DIALOGUE"

	// SubjectPrefix is the prefix for all dialogue subjects.
	SubjectPrefix = "dlg"
)

var _ dialogue.Notifier = (*StreamManager)(nil)

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the dialogue stream exists with proper configuration.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	// Check if stream exists
	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil // Stream already exists
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024, // 10GB
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Dialogue tree change notifications",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// EventSubject returns the subject for an event.
func EventSubject(tenantID, characterID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.%s.event.%s", SubjectPrefix, tenantID, characterID, eventType)
}

// CharacterFilter returns the filter subject for all events of a tenant's character.
func CharacterFilter(tenantID, characterID string) string {
	return fmt.Sprintf("%s.%s.%s.event.>", SubjectPrefix, tenantID, characterID)
}

// PublishEvent publishes an event to JetStream.
func (m *StreamManager) PublishEvent(ctx context.Context, event *model.DialogueEvent) (uint64, error) {
	subject := EventSubject(event.TenantID, event.CharacterID, event.Type)

	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, subject, data)
	if err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(string(event.Type), "error").Inc()
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}
	metrics.EventsPublishedTotal.WithLabelValues(string(event.Type), "success").Inc()

	return ack.Sequence, nil
}

// DialogueChanged publishes the event so chat views reload their context.
func (m *StreamManager) DialogueChanged(ctx context.Context, event *model.DialogueEvent) error {
	seq, err := m.PublishEvent(ctx, event)
	if err != nil {
		return err
	}
	event.Sequence = seq
	return nil
}

// replayInactiveThreshold lets the server reap a replay consumer whose
// deletion failed.
const replayInactiveThreshold = 30 * time.Second

// replayConsumerConfig returns an ephemeral consumer reading one character's
// events after afterSequence.
func replayConsumerConfig(tenantID, characterID string, afterSequence uint64) jetstream.ConsumerConfig {
	cfg := jetstream.ConsumerConfig{
		FilterSubject:     CharacterFilter(tenantID, characterID),
		AckPolicy:         jetstream.AckNonePolicy,
		DeliverPolicy:     jetstream.DeliverAllPolicy,
		InactiveThreshold: replayInactiveThreshold,
	}

	if afterSequence > 0 {
		cfg.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		cfg.OptStartSeq = afterSequence + 1
	}
	return cfg
}

// GetEvents retrieves events of a tenant's character starting after a sequence.
func (m *StreamManager) GetEvents(ctx context.Context, tenantID, characterID string, afterSequence uint64, limit int) ([]model.DialogueEvent, uint64, bool, error) {
	js := m.client.JetStream()

	consumer, err := js.CreateConsumer(ctx, StreamName, replayConsumerConfig(tenantID, characterID, afterSequence))
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to create consumer: %w", err)
	}
	defer func() {
		// Delete even when the request context is already done.
		deleteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = js.DeleteConsumer(deleteCtx, StreamName, consumer.CachedInfo().Name)
	}()

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to fetch events: %w", err)
	}

	events := []model.DialogueEvent{}
	var lastSequence uint64

	for msg := range batch.Messages() {
		var event model.DialogueEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			continue
		}

		meta, err := msg.Metadata()
		if err == nil {
			event.Sequence = meta.Sequence.Stream
			lastSequence = meta.Sequence.Stream
		}

		events = append(events, event)
	}

	if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, nats.ErrTimeout) {
		return nil, 0, false, fmt.Errorf("batch error: %w", err)
	}

	hasMore := len(events) == limit

	return events, lastSequence, hasMore, nil
}
