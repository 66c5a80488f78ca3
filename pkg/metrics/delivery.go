package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DeliveryMetrics counts provider calls made by the dispatcher.
type DeliveryMetrics struct {
	attempts *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func NewDeliveryMetrics(reg prometheus.Registerer) *DeliveryMetrics {
	if reg == nil {
		return &DeliveryMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flightnotify_delivery_attempts_total",
		Help: "Delivery attempts by channel and final status.",
	}, []string{"channel", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flightnotify_delivery_send_seconds",
		Help:    "Time spent inside channel senders.",
		Buckets: prometheus.DefBuckets,
	}, []string{"channel"})
	reg.MustRegister(attempts, latency)
	return &DeliveryMetrics{attempts: attempts, latency: latency}
}

// ObserveAttempt records one finished send.
func (d *DeliveryMetrics) ObserveAttempt(channel, status string, took time.Duration) {
	if d == nil || d.attempts == nil {
		return
	}
	d.attempts.WithLabelValues(normalizeLabel(channel), normalizeLabel(status)).Inc()
	d.latency.WithLabelValues(normalizeLabel(channel)).Observe(took.Seconds())
}
