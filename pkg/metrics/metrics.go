// Package metrics exposes Prometheus instruments for the analysis pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "graveyard"

var (
	// pipelineRuns counts analysis runs by kind (full, coaching, post_mortem)
	// and outcome status (needs_more_data, no_patterns, generated, all_filtered, failed).
	pipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Total analysis pipeline runs by kind and outcome",
	}, []string{"kind", "status"})

	// phaseDuration measures each orchestrator phase.
	phaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "phase_duration_seconds",
		Help:      "Duration of analysis pipeline phases in seconds",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"phase"})

	// findings counts detected patterns by name.
	findings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "patterns",
		Name:      "findings_total",
		Help:      "Total pattern findings above the confidence threshold",
	}, []string{"pattern"})

	// llmCalls counts completion calls by provider, phase and status.
	llmCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "calls_total",
		Help:      "Total completion calls",
	}, []string{"model", "phase", "status"})

	// llmLatency measures completion call latency.
	llmLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "latency_seconds",
		Help:      "Completion call latency in seconds",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
	}, []string{"model", "phase"})

	// llmTokens counts tokens by direction (prompt, completion).
	llmTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "tokens_total",
		Help:      "Total tokens sent and received",
	}, []string{"model", "direction"})

	// circuitState is 0 closed, 1 open, 2 half-open.
	circuitState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "circuit_state",
		Help:      "Completion circuit breaker state (0 closed, 1 open, 2 half-open)",
	})

	// gateRejections counts insights dropped by the quality gate by reason.
	gateRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "insights",
		Name:      "gate_rejections_total",
		Help:      "Total insights rejected by the quality gate",
	}, []string{"reason"})

	// failedWrites counts rows that could not be persisted.
	failedWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "failed_writes_total",
		Help:      "Total best-effort row writes that failed",
	}, []string{"kind"})

	// httpRequests counts served requests by route pattern and status.
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests by route and status",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// mcpToolCalls counts MCP tool invocations by tool and outcome (success, tool_error, error).
	mcpToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mcp",
		Name:      "tool_calls_total",
		Help:      "Total MCP tool calls by tool and outcome",
	}, []string{"tool", "outcome"})

	mcpToolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "mcp",
		Name:      "tool_duration_seconds",
		Help:      "MCP tool call duration in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"tool"})
)

// RecordRun counts one finished pipeline run.
func RecordRun(kind, status string) {
	pipelineRuns.WithLabelValues(kind, status).Inc()
}

// ObservePhase records how long a pipeline phase took.
func ObservePhase(phase string, elapsed time.Duration) {
	phaseDuration.WithLabelValues(phase).Observe(elapsed.Seconds())
}

// RecordFinding counts one persisted pattern finding.
func RecordFinding(pattern string) {
	findings.WithLabelValues(pattern).Inc()
}

// RecordLLMCall records the outcome, latency and token usage of a completion call.
func RecordLLMCall(model, phase, status string, elapsed time.Duration, promptTokens, completionTokens int) {
	llmCalls.WithLabelValues(model, phase, status).Inc()
	llmLatency.WithLabelValues(model, phase).Observe(elapsed.Seconds())
	if promptTokens > 0 {
		llmTokens.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		llmTokens.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
}

// SetCircuitState publishes the breaker state.
func SetCircuitState(state int) {
	circuitState.Set(float64(state))
}

// RecordGateRejection counts one insight rejected for reason.
func RecordGateRejection(reason string) {
	gateRejections.WithLabelValues(reason).Inc()
}

// RecordFailedWrite counts one row of kind that failed to persist.
func RecordFailedWrite(kind string) {
	failedWrites.WithLabelValues(kind).Inc()
}

// ObserveHTTPRequest records one served request. route is the matched mux
// pattern, never the raw path.
func ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordToolCall records one finished MCP tool call.
func RecordToolCall(tool, outcome string, elapsed time.Duration) {
	mcpToolCalls.WithLabelValues(tool, outcome).Inc()
	mcpToolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}
