package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics counts processor webhook deliveries by outcome.
type WebhookMetrics struct {
	received   *prometheus.CounterVec
	duplicates *prometheus.CounterVec
	rejected   prometheus.Counter
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_received",
		Help: "Webhook events accepted after signature verification.",
	}, []string{"event_type"})
	duplicates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_duplicate",
		Help: "Webhook deliveries skipped as already processed.",
	}, []string{"event_type"})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_events_rejected",
		Help: "Webhook deliveries rejected for bad signatures.",
	})
	reg.MustRegister(received, duplicates, rejected)
	return &WebhookMetrics{
		received:   received,
		duplicates: duplicates,
		rejected:   rejected,
	}
}

// IncReceived counts an accepted delivery for the given event type.
func (w *WebhookMetrics) IncReceived(eventType string) {
	if w == nil || w.received == nil {
		return
	}
	w.received.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncDuplicate counts a delivery skipped by the dedup ledger.
func (w *WebhookMetrics) IncDuplicate(eventType string) {
	if w == nil || w.duplicates == nil {
		return
	}
	w.duplicates.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncRejected counts a delivery that failed signature verification.
func (w *WebhookMetrics) IncRejected() {
	if w == nil || w.rejected == nil {
		return
	}
	w.rejected.Inc()
}
