package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Manager wraps the Prometheus metrics behind nil-safe record methods so
// components can carry an optional manager without guarding every call.
type Manager struct {
	prom *PrometheusMetrics
}

var (
	managerOnce sync.Once
	manager     *Manager
)

// GetManager returns the process-wide metrics manager. Metrics register
// with the default Prometheus registry exactly once.
func GetManager() *Manager {
	managerOnce.Do(func() {
		manager = &Manager{prom: NewPrometheusMetrics()}
	})
	return manager
}

// GetPrometheusMetrics exposes the raw metric vectors
func (m *Manager) GetPrometheusMetrics() *PrometheusMetrics {
	if m == nil {
		return nil
	}
	return m.prom
}

// RecordRPCRequest records one JSON-RPC request
func (m *Manager) RecordRPCRequest(chain, method, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.prom.RPCRequestsTotal.WithLabelValues(chain, method, status).Inc()
	m.prom.RPCRequestDuration.WithLabelValues(chain, method).Observe(duration.Seconds())
}

// RecordConnectionError records an endpoint connection failure
func (m *Manager) RecordConnectionError(chain, errorType string) {
	if m == nil {
		return
	}
	m.prom.ConnectionErrorsTotal.WithLabelValues(chain, errorType).Inc()
}

// RecordChunkFetch records the outcome of one chunk query
func (m *Manager) RecordChunkFetch(chain, status string) {
	if m == nil {
		return
	}
	m.prom.ChunksFetchedTotal.WithLabelValues(chain, status).Inc()
}

// RecordChunkRetry records a chunk retry after a transient error
func (m *Manager) RecordChunkRetry(chain string) {
	if m == nil {
		return
	}
	m.prom.ChunkRetriesTotal.WithLabelValues(chain).Inc()
}

// RecordLogsCounted adds to the running total of counted log entries
func (m *Manager) RecordLogsCounted(chain string, count uint64) {
	if m == nil {
		return
	}
	m.prom.LogsCountedTotal.WithLabelValues(chain).Add(float64(count))
}

// RecordVerification records a completed (or failed) verification
func (m *Manager) RecordVerification(outcome string, drift uint64, duration time.Duration) {
	if m == nil {
		return
	}
	m.prom.VerificationsTotal.WithLabelValues(outcome).Inc()
	m.prom.VerificationDuration.Observe(duration.Seconds())
	if outcome != "failed" {
		m.prom.LastDrift.Set(float64(drift))
	}
}

// RecordHTTPRequest records one HTTP API request
func (m *Manager) RecordHTTPRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.prom.HTTPRequestsTotal.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.prom.HTTPRequestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}
