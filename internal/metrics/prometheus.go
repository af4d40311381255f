package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics contains all Prometheus metrics for evmirror
type PrometheusMetrics struct {
	// RPC metrics
	RPCRequestsTotal      *prometheus.CounterVec
	RPCRequestDuration    *prometheus.HistogramVec
	ConnectionErrorsTotal *prometheus.CounterVec

	// Fetch metrics
	ChunksFetchedTotal *prometheus.CounterVec
	ChunkRetriesTotal  *prometheus.CounterVec
	LogsCountedTotal   *prometheus.CounterVec

	// Verification metrics
	VerificationsTotal   *prometheus.CounterVec
	VerificationDuration prometheus.Histogram
	LastDrift            prometheus.Gauge

	// API metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewPrometheusMetrics creates and registers all Prometheus metrics
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		RPCRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evmirror_rpc_requests_total",
				Help: "Total number of JSON-RPC requests issued",
			},
			[]string{"chain", "method", "status"},
		),

		RPCRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "evmirror_rpc_request_duration_seconds",
				Help:    "Time spent on individual JSON-RPC requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"chain", "method"},
		),

		ConnectionErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evmirror_connection_errors_total",
				Help: "Total number of endpoint connection errors",
			},
			[]string{"chain", "error_type"},
		),

		ChunksFetchedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evmirror_chunks_fetched_total",
				Help: "Total number of block-range chunks queried",
			},
			[]string{"chain", "status"},
		),

		ChunkRetriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evmirror_chunk_retries_total",
				Help: "Total number of chunk query retries after transient errors",
			},
			[]string{"chain"},
		),

		LogsCountedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evmirror_logs_counted_total",
				Help: "Total number of matching log entries counted",
			},
			[]string{"chain"},
		),

		VerificationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evmirror_verifications_total",
				Help: "Total number of mirror verifications by outcome",
			},
			[]string{"outcome"},
		),

		VerificationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "evmirror_verification_duration_seconds",
				Help:    "Time spent on complete mirror verifications",
				Buckets: prometheus.DefBuckets,
			},
		),

		LastDrift: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "evmirror_last_drift",
				Help: "Absolute count drift observed by the most recent verification",
			},
		),

		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evmirror_http_requests_total",
				Help: "Total number of HTTP API requests",
			},
			[]string{"path", "method", "status"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "evmirror_http_request_duration_seconds",
				Help:    "Time spent serving HTTP API requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
	}
}
