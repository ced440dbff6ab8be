// Package observability wires Prometheus metrics and OpenTelemetry tracing
// into the four core subsystems (C1-C4), matching the teacher's
// internal/observability package trimmed to the concerns this module's
// components actually exercise: LLM request latency/cost, tool dispatch
// latency/errors, and agent-run outcomes. The channel/webhook/database/HTTP
// metric families the teacher also defines have no caller here (those
// subsystems are out of scope per spec §1) and are not reproduced.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is a centralized collector for the orchestrator, provider
// adapters, and tool service. A nil *Metrics is always safe to use: every
// Record/Observe method on a nil receiver is a no-op, so callers can wire it
// in only when a process actually wants to export metrics.
type Metrics struct {
	// LLMRequestDuration measures provider Chat() call latency in seconds.
	// Labels: model, status (success|error)
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts provider Chat() calls by model and status.
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption reported on usage events.
	// Labels: model, type (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// ToolExecutionCounter counts tool dispatches by tool name and status
	// (success|error|timeout|not_found).
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool dispatch latency in seconds.
	ToolExecutionDuration *prometheus.HistogramVec

	// ErrorCounter tracks errors by component and error type.
	ErrorCounter *prometheus.CounterVec

	// RunAttempts counts agent-loop run outcomes (success|error).
	RunAttempts *prometheus.CounterVec
}

// NewMetrics constructs and registers the Prometheus collectors. Call once
// per process; registering twice against the default registry panics, same
// as the teacher's observability.NewMetrics.
func NewMetrics() *Metrics {
	return &Metrics{
		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forge_llm_request_duration_seconds",
				Help:    "Duration of provider chat requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"model", "status"},
		),
		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forge_llm_requests_total",
				Help: "Total number of provider chat requests by model and status",
			},
			[]string{"model", "status"},
		),
		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forge_llm_tokens_total",
				Help: "Total number of tokens used by model and type",
			},
			[]string{"model", "type"},
		),
		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forge_tool_executions_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),
		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forge_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),
		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forge_errors_total",
				Help: "Total number of errors by component and error type",
			},
			[]string{"component", "error_type"},
		),
		RunAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forge_run_attempts_total",
				Help: "Total number of agent run attempts by status",
			},
			[]string{"status"},
		),
	}
}

// RecordLLMRequest records one provider Chat() call.
func (m *Metrics) RecordLLMRequest(model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	if m == nil {
		return
	}
	m.LLMRequestCounter.WithLabelValues(model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(model, status).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
}

// RecordToolExecution records one tool dispatch outcome.
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordError increments the error counter for a given component/error type.
func (m *Metrics) RecordError(component, errorType string) {
	if m == nil {
		return
	}
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}

// RecordRunAttempt records an agent-loop run outcome.
func (m *Metrics) RecordRunAttempt(status string) {
	if m == nil {
		return
	}
	m.RunAttempts.WithLabelValues(status).Inc()
}
