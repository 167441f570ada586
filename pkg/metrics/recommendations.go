package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RecommendationMetrics tracks generation volume, model usage and degradation.
type RecommendationMetrics struct {
	generated *prometheus.CounterVec
	degraded  prometheus.Counter
	latency   prometheus.Histogram
	feedback  *prometheus.CounterVec
}

func NewRecommendationMetrics(reg prometheus.Registerer) *RecommendationMetrics {
	if reg == nil {
		return &RecommendationMetrics{}
	}
	m := &RecommendationMetrics{
		generated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_generated_total",
			Help:      "Recommendations persisted, by prediction source.",
		}, []string{"source"}),
		degraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendation_requests_degraded_total",
			Help:      "Generation requests that proceeded without live weather or event data.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recommendation_generate_seconds",
			Help:      "End-to-end generation latency.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		feedback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_submitted_total",
			Help:      "Feedback records by accuracy.",
		}, []string{"accurate"}),
	}
	reg.MustRegister(m.generated, m.degraded, m.latency, m.feedback)
	return m
}

func (m *RecommendationMetrics) ObserveGenerated(source string, count int) {
	if m == nil || m.generated == nil || count <= 0 {
		return
	}
	m.generated.WithLabelValues(normalizeLabel(source)).Add(float64(count))
}

func (m *RecommendationMetrics) IncDegraded() {
	if m == nil || m.degraded == nil {
		return
	}
	m.degraded.Inc()
}

func (m *RecommendationMetrics) ObserveLatency(d time.Duration) {
	if m == nil || m.latency == nil {
		return
	}
	m.latency.Observe(d.Seconds())
}

func (m *RecommendationMetrics) ObserveFeedback(accurate bool) {
	if m == nil || m.feedback == nil {
		return
	}
	label := "false"
	if accurate {
		label = "true"
	}
	m.feedback.WithLabelValues(label).Inc()
}
