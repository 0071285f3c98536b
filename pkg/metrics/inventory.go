package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	DirectionReleased = "released"
	DirectionConsumed = "consumed"
)

// InventoryMetrics counts seats moving in and out of tier pools and event sold counts.
type InventoryMetrics struct {
	units *prometheus.CounterVec
	sold  *prometheus.CounterVec
}

func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	if reg == nil {
		return &InventoryMetrics{}
	}
	units := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_units_adjusted_total",
		Help: "Tier inventory units released to or consumed from the sellable pool.",
	}, []string{"direction"})
	sold := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "event_sold_adjusted_total",
		Help: "Adjustments applied to event sold counters.",
	}, []string{"direction"})
	reg.MustRegister(units, sold)
	return &InventoryMetrics{units: units, sold: sold}
}

// AddUnits records count units moving in direction.
func (m *InventoryMetrics) AddUnits(direction string, count int) {
	if m == nil || m.units == nil || count <= 0 {
		return
	}
	m.units.WithLabelValues(normalizeLabel(direction)).Add(float64(count))
}

// AddSold records an event sold-count adjustment.
func (m *InventoryMetrics) AddSold(direction string, count int) {
	if m == nil || m.sold == nil || count <= 0 {
		return
	}
	m.sold.WithLabelValues(normalizeLabel(direction)).Add(float64(count))
}
