package metrics

import "time"

// ServerMetrics provides observability for the HTTP file server.
//
// Implementations collect request outcomes, connection lifecycle events and
// throughput. The interface is optional - components handed a no-op
// implementation pay no collection cost.
type ServerMetrics interface {
	// RecordRequest records one completed request with its response status
	// and processing duration.
	RecordRequest(status int, duration time.Duration)

	// RecordRateLimited increments the count of requests rejected by the
	// rate limiter.
	RecordRateLimited()

	// RecordBytesSent records response body bytes written to clients.
	RecordBytesSent(bytes int64)

	// SetActiveConnections updates the current connection gauge.
	SetActiveConnections(count int32)

	// RecordConnectionAccepted increments the accepted-connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the closed-connections counter.
	RecordConnectionClosed()
}

// noopServerMetrics discards all observations.
type noopServerMetrics struct{}

// NewNoopServerMetrics returns a ServerMetrics that collects nothing.
func NewNoopServerMetrics() ServerMetrics {
	return noopServerMetrics{}
}

func (noopServerMetrics) RecordRequest(int, time.Duration) {}
func (noopServerMetrics) RecordRateLimited()               {}
func (noopServerMetrics) RecordBytesSent(int64)            {}
func (noopServerMetrics) SetActiveConnections(int32)       {}
func (noopServerMetrics) RecordConnectionAccepted()        {}
func (noopServerMetrics) RecordConnectionClosed()          {}
