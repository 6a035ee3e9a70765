package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// CommandsTotal tracks admitted and rejected commands by outcome.
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scct_gateway_commands_total",
			Help: "Total number of manual trigger commands by result",
		},
		[]string{"kind", "result"},
	)
)
