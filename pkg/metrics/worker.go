package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Job outcomes reported by the worker.
const (
	OutcomeCompleted      = "completed"
	OutcomeSkipped        = "skipped"
	OutcomeDeferred       = "deferred"
	OutcomeRetryScheduled = "retry_scheduled"
	OutcomeDeadLettered   = "dead_lettered"
)

// WorkerMetrics tracks job outcomes and queue depth.
type WorkerMetrics struct {
	jobs  *prometheus.CounterVec
	depth *prometheus.GaugeVec
}

func NewWorkerMetrics(reg prometheus.Registerer) *WorkerMetrics {
	if reg == nil {
		return &WorkerMetrics{}
	}
	jobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flightnotify_worker_jobs_total",
		Help: "Jobs processed by queue and outcome.",
	}, []string{"queue", "outcome"})
	depth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flightnotify_queue_depth",
		Help: "Queue rows by state as of the last stats refresh.",
	}, []string{"queue", "state"})
	reg.MustRegister(jobs, depth)
	return &WorkerMetrics{jobs: jobs, depth: depth}
}

func (w *WorkerMetrics) IncOutcome(queue, outcome string) {
	if w == nil || w.jobs == nil {
		return
	}
	w.jobs.WithLabelValues(normalizeLabel(queue), normalizeLabel(outcome)).Inc()
}

// SetDepth publishes one queue's counts keyed by state.
func (w *WorkerMetrics) SetDepth(queue string, states map[string]int64) {
	if w == nil || w.depth == nil {
		return
	}
	for state, count := range states {
		w.depth.WithLabelValues(normalizeLabel(queue), state).Set(float64(count))
	}
}
