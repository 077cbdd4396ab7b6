package config

import (
	"github.com/webfsd/webfsd/pkg/metrics"
	promMetrics "github.com/webfsd/webfsd/pkg/metrics/prometheus"
)

// MetricsResult contains the metrics components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if
	// disabled).
	Server *metrics.Server

	// ServerMetrics is the collector handed to the file server (never nil;
	// no-op when disabled).
	ServerMetrics metrics.ServerMetrics
}

// InitializeMetrics creates the metrics components based on configuration.
//
// When disabled, the returned collector is a zero-overhead no-op and no
// exposition server is created.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			Server:        nil,
			ServerMetrics: metrics.NewNoopServerMetrics(),
		}
	}

	metrics.InitRegistry()

	return &MetricsResult{
		Server:        metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port}),
		ServerMetrics: promMetrics.NewServerMetrics(),
	}
}
