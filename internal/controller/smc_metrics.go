package controller

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var parseErrorsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "secretmanager",
		Subsystem: "controller",
		Name:      "duration_parse_errors_total",
		Help:      "Count of reconcileInterval values that failed to parse.",
	},
	[]string{"name", "namespace"},
)

func init() {
	metrics.Registry.MustRegister(parseErrorsTotal)
}

func observeParseError(name, namespace string) {
	parseErrorsTotal.WithLabelValues(name, namespace).Inc()
}
