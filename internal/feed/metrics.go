package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// FeedConnected tracks whether the SCCT connection is up.
	FeedConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scct_feed_connected",
		Help: "Whether the SCCT websocket connection is established (1) or not (0)",
	})

	// ReconnectAttemptsTotal tracks reconnection attempts.
	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scct_feed_reconnect_attempts_total",
		Help: "Total number of SCCT reconnection attempts",
	})

	// ReconnectFailuresTotal tracks reconnection failures.
	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scct_feed_reconnect_failures_total",
		Help: "Total number of SCCT reconnection failures",
	})

	// MessagesReceivedTotal tracks raw messages received by event name.
	MessagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scct_feed_messages_received_total",
			Help: "Total number of SCCT messages received",
		},
		[]string{"event"},
	)

	// EventsEmittedTotal tracks normalized domain events by type.
	EventsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scct_feed_events_emitted_total",
			Help: "Total number of normalized match events emitted",
		},
		[]string{"type"},
	)
)
