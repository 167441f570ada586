package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	job := "square-sync"
	metrics.ObserveDuration(job, 250*time.Millisecond)
	metrics.IncSuccess(job)
	metrics.IncSuccess(job)
	metrics.IncFailure(job)
	metrics.IncSkipped("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got := counterWithLabels(t, mfs, "marketprep_cron_job_runs_total", map[string]string{"job": job, "result": "success"}); got != 2 {
		t.Fatalf("expected success=2, got %f", got)
	}
	if got := counterWithLabels(t, mfs, "marketprep_cron_job_runs_total", map[string]string{"job": job, "result": "failure"}); got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "marketprep_cron_tick_skipped_total", "scheduler", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected skipped=1, got %f (%v)", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "marketprep_cron_job_duration_seconds", "job", job); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestRecommendationAndAdapterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	recs := NewRecommendationMetrics(reg)
	adapters := NewAdapterMetrics(reg)

	recs.ObserveGenerated("heuristic", 3)
	recs.ObserveGenerated("model", 0)
	recs.IncDegraded()
	recs.ObserveLatency(120 * time.Millisecond)
	recs.ObserveFeedback(true)
	adapters.ObserveFetch("weather", "stale")
	adapters.ObserveFetch("weather", "stale")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, _ := fetchCounterValue(mfs, "marketprep_recommendations_generated_total", "source", "heuristic"); got != 3 {
		t.Fatalf("expected 3 heuristic recommendations, got %f", got)
	}
	if got, _ := fetchCounterValue(mfs, "marketprep_feedback_submitted_total", "accurate", "true"); got != 1 {
		t.Fatalf("expected 1 accurate feedback, got %f", got)
	}
	if got := counterWithLabels(t, mfs, "marketprep_adapter_fetch_total", map[string]string{"adapter": "weather", "outcome": "stale"}); got != 2 {
		t.Fatalf("expected 2 stale weather fetches, got %f", got)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	NewCronJobMetrics(nil).IncSuccess("x")
	NewRecommendationMetrics(nil).IncDegraded()
	NewAdapterMetrics(nil).ObserveFetch("a", "b")
	NewHTTPMetrics(nil).Observe("GET", "/", 200, time.Millisecond)
	var nilMetrics *RecommendationMetrics
	nilMetrics.ObserveLatency(time.Second)
}

func counterWithLabels(t *testing.T, mfs []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		t.Fatalf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		matched := 0
		for _, pair := range metric.GetLabel() {
			if labels[pair.GetName()] == pair.GetValue() {
				matched++
			}
		}
		if matched == len(labels) {
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %q with labels %v not found", name, labels)
	return 0
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
