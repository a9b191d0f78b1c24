package metrics

import "github.com/prometheus/client_golang/prometheus"

// Conversation orchestration metrics.
var (
	ConversationTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragdex",
			Name:      "conversation_turns_total",
			Help:      "Conversation turns handled by the orchestrator",
		},
		[]string{"strategy", "outcome"}, // ok / flagged_in / flagged_out / refused / error
	)

	ConversationTurnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragdex",
			Name:      "conversation_turn_duration_seconds",
			Help:      "End-to-end turn handling duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"strategy"},
	)
)

var orchestratorMetricsRegistered bool

// RegisterOrchestratorMetrics registers orchestration metrics. Must be called once from main.
func RegisterOrchestratorMetrics() {
	if orchestratorMetricsRegistered {
		return
	}
	prometheus.MustRegister(ConversationTurnsTotal)
	prometheus.MustRegister(ConversationTurnDuration)
	orchestratorMetricsRegistered = true
}
