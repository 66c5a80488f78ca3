package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestDeliveryMetricsCountsByChannelAndStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDeliveryMetrics(reg)
	m.ObserveAttempt("email", "sent", 20*time.Millisecond)
	m.ObserveAttempt("email", "sent", 30*time.Millisecond)
	m.ObserveAttempt("sms", "failed", time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "flightnotify_delivery_attempts_total", "channel", "email"); err != nil || got != 2 {
		t.Fatalf("expected 2 email attempts, got %f err=%v", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "flightnotify_delivery_send_seconds", "channel", "email"); err != nil || got <= 0 {
		t.Fatalf("expected email latency sum > 0, got %f err=%v", got, err)
	}
}

func TestWorkerMetricsOutcomesAndDepth(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWorkerMetrics(reg)
	m.IncOutcome("notifications.high", OutcomeCompleted)
	m.IncOutcome("notifications.high", OutcomeDeadLettered)
	m.SetDepth("notifications.high", map[string]int64{"ready_to_process": 4})

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "flightnotify_worker_jobs_total", "outcome", OutcomeDeadLettered); err != nil || got != 1 {
		t.Fatalf("expected 1 dead-lettered job, got %f err=%v", got, err)
	}

	mf := findMetricFamily(mfs, "flightnotify_queue_depth")
	if mf == nil || len(mf.GetMetric()) != 1 || mf.GetMetric()[0].GetGauge().GetValue() != 4 {
		t.Fatalf("unexpected depth gauge %+v", mf)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	NewDeliveryMetrics(nil).ObserveAttempt("email", "sent", time.Second)
	NewWorkerMetrics(nil).IncOutcome("q", OutcomeCompleted)
	var nilMetrics *WorkerMetrics
	nilMetrics.SetDepth("q", map[string]int64{"in_flight": 1})
}
