package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the client.
type Metrics struct {
	// Streaming transport
	ConnectionsActive prometheus.Gauge
	ReconnectsTotal   prometheus.Counter
	FramesTotal       *prometheus.CounterVec
	PendingRequests   prometheus.Gauge

	// Session lifecycle
	SessionsCreated  prometheus.Counter
	SessionFallbacks prometheus.Counter

	// HTTP API
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector backed by its own registry, so
// multiple clients in one process (or one test binary) don't collide.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		ConnectionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "chatlink_ws_connections_active",
				Help: "Number of open streaming connections",
			},
		),
		ReconnectsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "chatlink_ws_reconnects_total",
				Help: "Total number of automatic reconnect attempts",
			},
		),
		FramesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatlink_ws_frames_total",
				Help: "Total frames by direction and kind",
			},
			[]string{"direction", "kind"},
		),
		PendingRequests: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "chatlink_pending_requests",
				Help: "In-flight queries awaiting a reply",
			},
		),
		SessionsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "chatlink_sessions_created_total",
				Help: "Sessions established over any channel",
			},
		),
		SessionFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "chatlink_session_fallbacks_total",
				Help: "Sessions established via the HTTP fallback",
			},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatlink_http_requests_total",
				Help: "HTTP API requests by operation and status",
			},
			[]string{"operation", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatlink_http_request_duration_seconds",
				Help:    "HTTP API request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
	}
}

// RecordFrame counts one frame. direction is "in" or "out"; kind is one of
// "query", "response", "error", "session".
func (m *Metrics) RecordFrame(direction, kind string) {
	m.FramesTotal.WithLabelValues(direction, kind).Inc()
}

// RecordHTTPRequest counts one HTTP API call and observes its duration.
func (m *Metrics) RecordHTTPRequest(operation, status string, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(operation, status).Inc()
	m.HTTPDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// Handler returns an HTTP handler exposing this collector's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
