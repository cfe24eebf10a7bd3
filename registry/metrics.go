package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// predictionsTotal counts per-oxide prediction steps by result
	predictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oxidecast_predictions_total",
		Help: "Per-oxide prediction steps by result",
	}, []string{"oxide", "result"})

	// predictionDuration tracks scaler plus model latency per oxide
	predictionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "oxidecast_prediction_duration_seconds",
		Help:    "Scaler and model evaluation time per oxide in seconds",
		Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10), // 1us to ~260ms
	}, []string{"oxide"})
)
