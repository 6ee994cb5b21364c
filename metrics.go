package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the application.
type Metrics struct {
	// WebSocket connection metrics
	ConnectedClients prometheus.Gauge
	ConnectionsTotal prometheus.Counter
	MessageReceived  prometheus.Counter
	MessageSent      prometheus.Counter

	// RPC method metrics
	RPCRequests *prometheus.CounterVec

	// Batch verification metrics
	BatchVerifySize  prometheus.Histogram
	VerifyQueueDepth prometheus.Gauge
}

// NewMetrics initializes and registers Prometheus metrics on the default
// registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(nil)
}

// NewMetricsWithRegistry initializes and registers Prometheus metrics with a
// custom registry. Tests pass their own registry to avoid duplicate
// registration.
func NewMetricsWithRegistry(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		ConnectedClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "signet_connected_clients",
			Help: "The current number of connected clients",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "signet_connections_total",
			Help: "The total number of WebSocket connections made since server start",
		}),
		MessageReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "signet_ws_messages_received_total",
			Help: "The total number of WebSocket messages received",
		}),
		MessageSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "signet_ws_messages_sent_total",
			Help: "The total number of WebSocket messages sent",
		}),
		RPCRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signet_rpc_requests_total",
				Help: "The total number of RPC requests by method and status",
			},
			[]string{"method", "status"},
		),
		BatchVerifySize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "signet_batch_verify_size",
			Help:    "The number of items per batch_verify request",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		VerifyQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "signet_verify_queue_depth",
			Help: "The number of verification items waiting for a pool worker",
		}),
	}
}
