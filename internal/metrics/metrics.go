// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outline_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "outline_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// TreeOperationsTotal counts engine operations by outcome
	// (ok, not_found, invalid, error).
	TreeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outline_tree_operations_total",
			Help: "Tree mutations executed, labeled by operation and result",
		},
		[]string{"op", "result"},
	)

	TreeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "outline_tree_operation_duration_seconds",
			Help:    "Duration of tree mutations including the transaction",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"op"},
	)

	SiblingsShiftedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outline_tree_siblings_shifted_total",
			Help: "Sibling edges whose position was shifted to make room for a move",
		},
	)
)

// RegisterSSEClients exports the number of connected SSE subscribers,
// read from count at scrape time.
func RegisterSSEClients(count func() int) error {
	return prometheus.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "outline_sse_clients",
			Help: "Connected Server-Sent Events subscribers",
		},
		func() float64 { return float64(count()) },
	))
}
