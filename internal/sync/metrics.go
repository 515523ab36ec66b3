package sync

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

// Operation labels for syncOperationsTotal, per spec.md §4.9.
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpNoChange = "no_change"
)

var syncOperationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "secretmanager",
		Subsystem: "sync",
		Name:      "key_operations_total",
		Help:      "Per-key sync operations, labeled by provider and operation.",
	},
	[]string{"name", "namespace", "provider", "operation"},
)

var syncKeysReconciled = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "secretmanager",
		Subsystem: "sync",
		Name:      "keys_reconciled",
		Help:      "Number of keys successfully reconciled (including no-ops) in the most recent sync.",
	},
	[]string{"name", "namespace"},
)

func init() {
	metrics.Registry.MustRegister(syncOperationsTotal, syncKeysReconciled)
}

func observeKeyOperation(name, namespace, providerName, operation string) {
	syncOperationsTotal.WithLabelValues(name, namespace, providerName, operation).Inc()
}

func observeKeysReconciled(name, namespace string, count int) {
	syncKeysReconciled.WithLabelValues(name, namespace).Set(float64(count))
}

// CleanupMetrics removes all metric series for a deleted SecretManagerConfig.
func CleanupMetrics(name, namespace string) {
	labels := prometheus.Labels{"name": name, "namespace": namespace}
	syncOperationsTotal.DeletePartialMatch(labels)
	syncKeysReconciled.DeletePartialMatch(labels)
}
