package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics counts relayed outbox rows by event type and outcome.
type OutboxMetrics struct {
	relayed *prometheus.CounterVec
	lag     prometheus.Histogram
}

// NewOutboxMetrics registers outbox relay metrics on reg. A nil registerer
// yields a no-op recorder.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	relayed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_relayed_total",
		Help:      "Outbox rows handled by the relay, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	lag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "outbox_publish_lag_seconds",
		Help:      "Seconds between an outbox row being written and being published.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
	})
	reg.MustRegister(relayed, lag)
	return &OutboxMetrics{relayed: relayed, lag: lag}
}

func (m *OutboxMetrics) Relayed(eventType, outcome string) {
	if m == nil || m.relayed == nil {
		return
	}
	m.relayed.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func (m *OutboxMetrics) PublishLag(seconds float64) {
	if m == nil || m.lag == nil || seconds < 0 {
		return
	}
	m.lag.Observe(seconds)
}
