package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMustRegisterDoesNotPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("MustRegister panicked: %v", r)
		}
	}()
	MustRegister(reg)
}

func TestStatusValueMapping(t *testing.T) {
	tests := []struct {
		status string
		want   float64
	}{
		{"idle", 0},
		{"running", 1},
		{"completed", 2},
		{"error", 3},
		{"max_turns", 4},
		{"halted", 5},
		{"unknown_status", -1},
	}
	for _, tc := range tests {
		t.Run(tc.status, func(t *testing.T) {
			if got := StatusValue(tc.status); got != tc.want {
				t.Errorf("StatusValue(%q) = %v, want %v", tc.status, got, tc.want)
			}
		})
	}
}

func TestCountersAcceptLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustRegister(reg)

	ProviderCalls.WithLabelValues("ok").Inc()
	ToolCalls.WithLabelValues("search", "ok").Inc()
	ToolDuration.WithLabelValues("search").Observe(0.5)
	AgentStatus.WithLabelValues("agent-1").Set(StatusValue("running"))
	SchedulerTicks.WithLabelValues("report", "started").Inc()

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(metrics) == 0 {
		t.Error("expected at least one registered metric family after recording observations")
	}
}
