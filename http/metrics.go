package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oxidecast_http_requests_total",
		Help: "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "oxidecast_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// predictFailures counts rejected or failed /predict calls by kind
	predictFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oxidecast_predict_failures_total",
		Help: "Failed /predict requests by failure kind",
	}, []string{"kind"})
)

// routeLabel keeps the route label bounded; unknown paths share one label.
func routeLabel(path string) string {
	switch path {
	case "/predict", "/healthz", "/metrics":
		return path
	default:
		return "other"
	}
}
