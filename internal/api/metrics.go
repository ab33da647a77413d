package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus collectors. Route labels use the chi route pattern rather than
// the raw URL path to keep cardinality bounded.
var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homedeck",
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests served, by method, route and status code.",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "homedeck",
		Subsystem: "api",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency in seconds, by method and route.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"method", "path"})

	sensorReadingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "homedeck",
		Subsystem: "sensors",
		Name:      "readings_ingested_total",
		Help:      "Total sensor readings accepted via the HTTP ingest endpoint.",
	})

	wsConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "homedeck",
		Subsystem: "api",
		Name:      "websocket_connected_clients",
		Help:      "Number of currently connected WebSocket clients.",
	})
)

// handlePrometheus serves metrics in Prometheus exposition format.
func (s *Server) handlePrometheus(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}
