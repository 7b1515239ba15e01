package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestOutboxMetricsRelayed(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)

	m.Relayed("movement_recorded", "published")
	m.Relayed("movement_recorded", "published")
	m.Relayed("stock_low", "dead_lettered")
	m.PublishLag(1.5)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	got, err := fetchCounterValue(mfs, "stockhold_outbox_relayed_total", map[string]string{"outcome": "published"})
	if err != nil {
		t.Fatalf("fetch relayed: %v", err)
	}
	if got != 2 {
		t.Fatalf("expected 2 published got %v", got)
	}
	got, err = fetchCounterValue(mfs, "stockhold_outbox_relayed_total", map[string]string{"event_type": "stock_low"})
	if err != nil {
		t.Fatalf("fetch dead lettered: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected 1 stock_low row got %v", got)
	}
}

func TestNilOutboxMetricsIsNoop(t *testing.T) {
	var m *OutboxMetrics
	m.Relayed("stock_low", "published")
	NewOutboxMetrics(nil).PublishLag(3)
}
