// Package telemetry centralizes the Prometheus metrics and OpenTelemetry
// tracer shared across the Turn engine, executor, agent server, and
// scheduler — mirroring the teacher's habit of instrumenting the same call
// sites that emit structured events (internal/agent/loop.go pairs event
// emission with span/metric creation at the same points).
package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/prometheus/client_golang/prometheus"
)

// Tracer is the shared OpenTelemetry tracer for turn/tool spans.
var Tracer trace.Tracer = otel.Tracer("github.com/haasonsaas/agentrt")

var (
	// ProviderCalls counts provider completion attempts by outcome.
	ProviderCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentrt_provider_calls_total",
		Help: "Provider completion attempts, labeled by outcome (ok|error|retry).",
	}, []string{"outcome"})

	// ToolCalls counts tool executions by outcome.
	ToolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentrt_tool_calls_total",
		Help: "Tool executions, labeled by tool name and outcome (ok|error|timeout|blocked).",
	}, []string{"tool", "outcome"})

	// ToolDuration observes tool execution wall time.
	ToolDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agentrt_tool_duration_seconds",
		Help:    "Tool execution duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"tool"})

	// AgentStatus is a per-agent gauge mirroring Server.Health's status
	// field: 0=idle 1=running 2=completed 3=error 4=max_turns 5=halted.
	AgentStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "agentrt_agent_status",
		Help: "Current status of an agent server, by agent_id.",
	}, []string{"agent_id"})

	// SchedulerTicks counts scheduler tick outcomes per job.
	SchedulerTicks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentrt_scheduler_ticks_total",
		Help: "Scheduler tick outcomes, labeled by job and outcome (started|skipped|orphaned).",
	}, []string{"job", "outcome"})
)

// MustRegister registers every collector above against reg. Call once at
// process start; tests typically use a fresh prometheus.NewRegistry() to
// avoid collisions across parallel test binaries.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(ProviderCalls, ToolCalls, ToolDuration, AgentStatus, SchedulerTicks)
}

// StatusValue maps a models.Status string to the AgentStatus gauge's
// numeric encoding.
func StatusValue(status string) float64 {
	switch status {
	case "idle":
		return 0
	case "running":
		return 1
	case "completed":
		return 2
	case "error":
		return 3
	case "max_turns":
		return 4
	case "halted":
		return 5
	default:
		return -1
	}
}
