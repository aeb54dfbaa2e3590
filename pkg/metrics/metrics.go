// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// BranchSwitchesTotal tracks branch switch attempts by outcome.
	BranchSwitchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogue_branch_switches_total",
			Help: "Branch switch attempts by result",
		},
		[]string{"result"},
	)

	// NodeEditsTotal tracks node content edits by outcome.
	NodeEditsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogue_node_edits_total",
			Help: "Node content edits by result",
		},
		[]string{"result"},
	)

	// TurnsAppendedTotal tracks turns recorded into trees.
	TurnsAppendedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dialogue_turns_appended_total",
			Help: "Total turns appended to dialogue trees",
		},
	)

	// CorruptTreeTotal tracks corrupt-data diagnostics raised during path walks and layout.
	CorruptTreeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogue_corrupt_tree_total",
			Help: "Corrupt dialogue tree diagnostics",
		},
		[]string{"kind"},
	)

	// DialogueTreesActive tracks trees held in memory.
	DialogueTreesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dialogue_trees_active",
			Help: "Number of dialogue trees held in memory",
		},
	)

	// SummarizerDuration tracks summarizer call duration.
	SummarizerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "summarizer_duration_seconds",
			Help:    "Summarizer call duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"transport", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// EventsPublishedTotal tracks dialogue events published to NATS.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogue_events_published_total",
			Help: "Dialogue events published by type and status",
		},
		[]string{"type", "status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordSummary records metrics for a summarizer call.
func RecordSummary(transport, model, status string, duration float64, tokensIn, tokensOut int) {
	SummarizerDuration.WithLabelValues(transport, status).Observe(duration)
	if model != "" {
		LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
		LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
	}
}

// RecordSwitch records a branch switch outcome.
func RecordSwitch(result string) {
	BranchSwitchesTotal.WithLabelValues(result).Inc()
}

// RecordEdit records a node edit outcome.
func RecordEdit(result string) {
	NodeEditsTotal.WithLabelValues(result).Inc()
}

// RecordCorruption records a corrupt-tree diagnostic.
func RecordCorruption(kind string) {
	CorruptTreeTotal.WithLabelValues(kind).Inc()
}
