// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesTriggered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_queries_triggered_total",
			Help: "Total number of query triggers accepted per query type",
		},
		[]string{"query_type"},
	)

	TriggersRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_triggers_rejected_total",
			Help: "Total number of query triggers rejected before reaching the registry",
		},
		[]string{"query_type", "reason"},
	)

	PollAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_poll_attempts_total",
			Help: "Total number of result poll attempts per query type",
		},
		[]string{"query_type"},
	)

	PollTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_poll_timeouts_total",
			Help: "Total number of poll loops that exhausted their attempt budget",
		},
		[]string{"query_type"},
	)

	PollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "registry_poll_duration_seconds",
			Help: "Elapsed time from first poll attempt to resolution or timeout",
		},
		[]string{"query_type", "outcome"},
	)

	SessionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_session_transitions_total",
			Help: "Session state transitions by target state",
		},
		[]string{"to"},
	)
)
