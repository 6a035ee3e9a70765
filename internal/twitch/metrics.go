package twitch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// CallsTotal tracks Helix API calls by operation and outcome.
	CallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scct_twitch_calls_total",
			Help: "Total number of Twitch API calls",
		},
		[]string{"op", "status"},
	)

	// CallRetriesTotal tracks transient-failure retries by operation.
	CallRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scct_twitch_call_retries_total",
			Help: "Total number of retried Twitch API calls",
		},
		[]string{"op"},
	)

	// CallDurationSeconds tracks per-call latency by operation.
	CallDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scct_twitch_call_duration_seconds",
			Help:    "Twitch API call duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// AuthRefreshesTotal tracks bearer credential refreshes.
	AuthRefreshesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scct_twitch_auth_refreshes_total",
		Help: "Total number of bearer credential refreshes",
	})

	// RateLimitWaitsTotal tracks rate-limit delays observed.
	RateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scct_twitch_rate_limit_waits_total",
		Help: "Total number of rate-limited Twitch API calls",
	})
)
