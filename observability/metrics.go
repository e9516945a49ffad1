package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects run, model and tool statistics.
type Metrics struct {
	// RunCounter counts runs. Labels: agent, status (success|error)
	RunCounter *prometheus.CounterVec

	// RunDuration measures run latency in seconds. Labels: agent
	RunDuration *prometheus.HistogramVec

	// ModelRequestCounter counts model calls. Labels: provider, model, status
	ModelRequestCounter *prometheus.CounterVec

	// ModelRequestDuration measures model call latency. Labels: provider, model
	ModelRequestDuration *prometheus.HistogramVec

	// TokensUsed tracks token consumption. Labels: provider, model, type (prompt|completion)
	TokensUsed *prometheus.CounterVec

	// ToolCallCounter counts tool invocations. Labels: tool, status (success|error)
	ToolCallCounter *prometheus.CounterVec

	// ToolCallDuration measures tool latency. Labels: tool
	ToolCallDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_runs_total",
				Help: "Total number of agent runs by agent and status",
			},
			[]string{"agent", "status"},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_run_duration_seconds",
				Help:    "Duration of agent runs in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"agent"},
		),
		ModelRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_model_requests_total",
				Help: "Total number of model requests by provider, model and status",
			},
			[]string{"provider", "model", "status"},
		),
		ModelRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_model_request_duration_seconds",
				Help:    "Duration of model requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),
		TokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_tokens_total",
				Help: "Total number of tokens used by provider, model and type",
			},
			[]string{"provider", "model", "type"},
		),
		ToolCallCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_tool_calls_total",
				Help: "Total number of tool calls by tool and status",
			},
			[]string{"tool", "status"},
		),
		ToolCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_tool_call_duration_seconds",
				Help:    "Duration of tool calls in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"tool"},
		),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(agent string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.RunCounter.WithLabelValues(agent, status(err)).Inc()
	m.RunDuration.WithLabelValues(agent).Observe(d.Seconds())
}

// RecordModelRequest records one model call and its token usage.
func (m *Metrics) RecordModelRequest(provider, model string, d time.Duration, promptTokens, completionTokens int, err error) {
	if m == nil {
		return
	}
	m.ModelRequestCounter.WithLabelValues(provider, model, status(err)).Inc()
	m.ModelRequestDuration.WithLabelValues(provider, model).Observe(d.Seconds())
	if promptTokens > 0 {
		m.TokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.TokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordToolCall records one tool execution. failed marks tool-level errors.
func (m *Metrics) RecordToolCall(tool string, d time.Duration, failed bool) {
	if m == nil {
		return
	}
	st := "success"
	if failed {
		st = "error"
	}
	m.ToolCallCounter.WithLabelValues(tool, st).Inc()
	m.ToolCallDuration.WithLabelValues(tool).Observe(d.Seconds())
}
