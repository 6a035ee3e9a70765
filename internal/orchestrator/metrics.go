package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// TransitionsTotal tracks prediction state transitions.
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scct_prediction_transitions_total",
			Help: "Total number of prediction state transitions",
		},
		[]string{"from", "to"},
	)

	// EventsTotal tracks feed events consumed by type.
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scct_orchestrator_events_total",
			Help: "Total number of match events processed",
		},
		[]string{"type"},
	)

	// CommandsTotal tracks manual commands by kind and result.
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scct_orchestrator_commands_total",
			Help: "Total number of manual commands processed",
		},
		[]string{"kind", "status"},
	)

	// RemoteFailuresTotal tracks remote call failures that moved the
	// prediction to the failed state.
	RemoteFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scct_orchestrator_remote_failures_total",
			Help: "Total number of remote call failures by operation",
		},
		[]string{"op"},
	)
)
