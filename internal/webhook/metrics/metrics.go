// Package metrics holds Prometheus metrics for webhook ingestion.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	EventsReceived  *prometheus.CounterVec
	EventsProcessed *prometheus.CounterVec
	StepFailures    *prometheus.CounterVec
	RejectedTotal   prometheus.Counter
}

// New creates and registers the webhook metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		EventsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "orgkit_webhook_events_received_total",
			Help: "Verified webhook events received, by event type",
		}, []string{"event_type"}),
		EventsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "orgkit_webhook_events_processed_total",
			Help: "Webhook events fully processed without step failures, by event type",
		}, []string{"event_type"}),
		StepFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "orgkit_webhook_step_failures_total",
			Help: "Processing step failures, by event type and step",
		}, []string{"event_type", "step"}),
		RejectedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "orgkit_webhook_rejected_total",
			Help: "Webhook requests rejected before processing (signature or body)",
		}),
	}
}

func (m *Metrics) IncrementReceived(eventType string) {
	m.EventsReceived.WithLabelValues(eventType).Inc()
}

func (m *Metrics) IncrementProcessed(eventType string) {
	m.EventsProcessed.WithLabelValues(eventType).Inc()
}

func (m *Metrics) IncrementStepFailure(eventType, step string) {
	m.StepFailures.WithLabelValues(eventType, step).Inc()
}

func (m *Metrics) IncrementRejected() {
	m.RejectedTotal.Inc()
}
