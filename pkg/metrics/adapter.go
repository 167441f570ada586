package metrics

import "github.com/prometheus/client_golang/prometheus"

// AdapterMetrics counts external adapter outcomes (hit, fresh, stale, miss).
type AdapterMetrics struct {
	fetches *prometheus.CounterVec
}

func NewAdapterMetrics(reg prometheus.Registerer) *AdapterMetrics {
	if reg == nil {
		return &AdapterMetrics{}
	}
	fetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "adapter_fetch_total",
		Help:      "External adapter fetches by outcome.",
	}, []string{"adapter", "outcome"})
	reg.MustRegister(fetches)
	return &AdapterMetrics{fetches: fetches}
}

// ObserveFetch satisfies adapter.Observer.
func (a *AdapterMetrics) ObserveFetch(adapter, outcome string) {
	if a == nil || a.fetches == nil {
		return
	}
	a.fetches.WithLabelValues(normalizeLabel(adapter), normalizeLabel(outcome)).Inc()
}
