package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// InventoryMetrics counts stock operations by outcome.
type InventoryMetrics struct {
	reservations *prometheus.CounterVec
	movements    *prometheus.CounterVec
	released     *prometheus.CounterVec
	conflicts    *prometheus.CounterVec
}

// NewInventoryMetrics registers inventory counters on reg. A nil registerer
// yields a no-op recorder.
func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	if reg == nil {
		return &InventoryMetrics{}
	}
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reservations_created_total",
		Help:      "Reservations created.",
	}, []string{"warehouse"})
	movements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "movements_recorded_total",
		Help:      "Stock movements recorded by type.",
	}, []string{"type"})
	released := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reservations_closed_total",
		Help:      "Reservations closed by terminal status.",
	}, []string{"status"})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stock_conflicts_total",
		Help:      "Operations rejected for insufficient stock.",
	}, []string{"operation"})
	reg.MustRegister(reservations, movements, released, conflicts)
	return &InventoryMetrics{
		reservations: reservations,
		movements:    movements,
		released:     released,
		conflicts:    conflicts,
	}
}

func (m *InventoryMetrics) ReservationCreated(warehouse string) {
	if m == nil || m.reservations == nil {
		return
	}
	m.reservations.WithLabelValues(normalizeLabel(warehouse)).Inc()
}

func (m *InventoryMetrics) ReservationClosed(status string) {
	if m == nil || m.released == nil {
		return
	}
	m.released.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *InventoryMetrics) MovementRecorded(movementType string) {
	if m == nil || m.movements == nil {
		return
	}
	m.movements.WithLabelValues(normalizeLabel(movementType)).Inc()
}

func (m *InventoryMetrics) StockConflict(operation string) {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.WithLabelValues(normalizeLabel(operation)).Inc()
}
