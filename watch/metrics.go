package watch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var artifactChanges = promauto.NewCounter(prometheus.CounterOpts{
	Name: "oxidecast_artifact_changes_total",
	Help: "Changes to loaded model artifacts seen on disk since startup",
})
