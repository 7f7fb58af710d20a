package metrics

import "github.com/prometheus/client_golang/prometheus"

// Quota Prometheus metrics.
var (
	QuotaOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quotad",
			Name:      "quota_operations_total",
			Help:      "Total quota operations by outcome",
		},
		[]string{"op", "outcome"}, // outcome: "ok" / "exceeded" / "already_submitted" / "error"
	)

	QuotaUnitsConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quotad",
			Name:      "quota_units_consumed_total",
			Help:      "Total quota units consumed by pool",
		},
		[]string{"pool"}, // "daily" / "bonus"
	)
)

var quotaMetricsRegistered bool

// RegisterQuotaMetrics registers Prometheus quota metrics. Must be called once from main.
func RegisterQuotaMetrics() {
	if quotaMetricsRegistered {
		return
	}
	prometheus.MustRegister(QuotaOperationsTotal)
	prometheus.MustRegister(QuotaUnitsConsumedTotal)
	quotaMetricsRegistered = true
}
