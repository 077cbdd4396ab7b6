// Package prometheus contains the Prometheus-backed implementation of the
// metrics interfaces.
package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/webfsd/webfsd/pkg/metrics"
)

// serverMetrics is the Prometheus implementation of metrics.ServerMetrics.
type serverMetrics struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     prometheus.Histogram
	rateLimitedTotal    prometheus.Counter
	bytesSent           prometheus.Counter
	activeConnections   prometheus.Gauge
	connectionsAccepted prometheus.Counter
	connectionsClosed   prometheus.Counter
}

// NewServerMetrics creates a Prometheus-backed ServerMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry
// not called).
func NewServerMetrics() metrics.ServerMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopServerMetrics()
	}

	reg := metrics.GetRegistry()

	return &serverMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "webfsd_requests_total",
				Help: "Total number of HTTP requests by response status",
			},
			[]string{"status"},
		),
		requestDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "webfsd_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
				Buckets: []float64{
					0.001, // 1ms
					0.005, // 5ms
					0.01,  // 10ms
					0.05,  // 50ms
					0.1,   // 100ms
					0.5,   // 500ms
					1.0,   // 1s
					5.0,   // 5s
				},
			},
		),
		rateLimitedTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "webfsd_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		),
		bytesSent: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "webfsd_bytes_sent_total",
				Help: "Total response body bytes sent to clients",
			},
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "webfsd_active_connections",
				Help: "Current number of active client connections",
			},
		),
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "webfsd_connections_accepted_total",
				Help: "Total number of accepted client connections",
			},
		),
		connectionsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "webfsd_connections_closed_total",
				Help: "Total number of closed client connections",
			},
		),
	}
}

func (m *serverMetrics) RecordRequest(status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	m.requestDuration.Observe(duration.Seconds())
}

func (m *serverMetrics) RecordRateLimited() {
	m.rateLimitedTotal.Inc()
}

func (m *serverMetrics) RecordBytesSent(bytes int64) {
	m.bytesSent.Add(float64(bytes))
}

func (m *serverMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *serverMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *serverMetrics) RecordConnectionClosed() {
	m.connectionsClosed.Inc()
}
