package dialogue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/dialogue-tree/internal/model"
	"github.com/capitalize-ai/dialogue-tree/pkg/logger"
)

func staticSummarizer(summary string, err error) (Summarizer, *[]string) {
	var seen []string
	return SummarizerFunc(func(_ context.Context, text string, _ model.ConnectionParams) (string, error) {
		seen = append(seen, text)
		return summary, err
	}), &seen
}

func TestEdit_ReplacesContentAndSummary(t *testing.T) {
	tr, a, _ := chainTree(t)
	c := appendTurn(t, tr, a.NodeID, "again", "sibling")
	before := tr.Nodes()

	summ, seen := staticSummarizer("B-summary", nil)
	notifier := &recordingNotifier{}
	editor := NewEditor(summ, notifier, logger.NewNop())

	node, err := editor.EditNodeContent(context.Background(), tr, a.NodeID, "bar", model.ConnectionParams{Locale: "en"})
	require.NoError(t, err)
	assert.Equal(t, []string{"bar"}, *seen)
	assert.Equal(t, "bar", node.AssistantResponse)
	require.NotNil(t, node.ParsedContent)
	assert.Equal(t, "B-summary", node.ParsedContent.CompressedContent)

	after := tr.Nodes()
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].NodeID, after[i].NodeID)
		assert.Equal(t, before[i].ParentNodeID, after[i].ParentNodeID)
		if before[i].NodeID == a.NodeID {
			assert.Equal(t, before[i].UserInput, after[i].UserInput)
			assert.Equal(t, before[i].FullResponse, after[i].FullResponse)
			assert.Equal(t, before[i].CreatedAt, after[i].CreatedAt)
			continue
		}
		assert.Equal(t, before[i], after[i])
	}
	assert.Equal(t, c.NodeID, tr.CurrentNodeID())

	require.Equal(t, 1, notifier.count())
	assert.Equal(t, model.EventTypeNodeEdited, notifier.events[0].Type)
	assert.Equal(t, a.NodeID, notifier.events[0].NodeID)
}

func TestEdit_SummarizerFailureLeavesNodeIntact(t *testing.T) {
	tr, a, _ := chainTree(t)
	before := tr.UpdatedAt()
	summ, _ := staticSummarizer("", errors.New("503 from provider"))
	notifier := &recordingNotifier{}
	editor := NewEditor(summ, notifier, logger.NewNop())

	_, err := editor.EditNodeContent(context.Background(), tr, a.NodeID, "bar", model.ConnectionParams{})
	require.ErrorIs(t, err, ErrUpstreamFailure)
	assert.Contains(t, err.Error(), "503")

	got, _ := tr.Node(a.NodeID)
	assert.Equal(t, "foo", got.AssistantResponse)
	assert.Nil(t, got.ParsedContent)
	assert.Equal(t, before, tr.UpdatedAt())
	assert.Zero(t, notifier.count())
}

func TestEdit_BlankSummaryIsUpstreamFailure(t *testing.T) {
	tr, a, _ := chainTree(t)
	summ, _ := staticSummarizer("   \n", nil)
	editor := NewEditor(summ, nil, logger.NewNop())

	_, err := editor.EditNodeContent(context.Background(), tr, a.NodeID, "bar", model.ConnectionParams{})
	require.ErrorIs(t, err, ErrUpstreamFailure)

	got, _ := tr.Node(a.NodeID)
	assert.Equal(t, "foo", got.AssistantResponse)
}

func TestEdit_UnknownNode(t *testing.T) {
	tr, _, _ := chainTree(t)
	summ, seen := staticSummarizer("s", nil)
	editor := NewEditor(summ, nil, logger.NewNop())

	_, err := editor.EditNodeContent(context.Background(), tr, "X", "bar", model.ConnectionParams{})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, *seen)
}

func TestEdit_ResubmissionWhileSummarizing(t *testing.T) {
	tr, a, _ := chainTree(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	summ := SummarizerFunc(func(ctx context.Context, text string, _ model.ConnectionParams) (string, error) {
		close(entered)
		<-release
		return "sum", nil
	})
	editor := NewEditor(summ, nil, logger.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := editor.EditNodeContent(context.Background(), tr, a.NodeID, "first", model.ConnectionParams{})
		done <- err
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("summarizer was never called")
	}

	_, err := editor.EditNodeContent(context.Background(), tr, a.NodeID, "second", model.ConnectionParams{})
	require.ErrorIs(t, err, ErrEditInFlight)

	close(release)
	require.NoError(t, <-done)
	got, _ := tr.Node(a.NodeID)
	assert.Equal(t, "first", got.AssistantResponse)
}
