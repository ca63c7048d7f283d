package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"promoreg/internal/registry"
)

// Metrics exposes registry activity. A nil *Metrics is a valid no-op.
type Metrics struct {
	events    *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	customers *prometheus.GaugeVec
	live      prometheus.Gauge
}

// New builds the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "promoreg",
			Name:      "events_total",
			Help:      "Committed registry mutations by event type.",
		}, []string{"type"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "promoreg",
			Name:      "rejected_total",
			Help:      "Rejected registry commands by operation and error kind.",
		}, []string{"operation", "kind"}),
		customers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "promoreg",
			Name:      "active_customers",
			Help:      "Currently active customers per promotion slot.",
		}, []string{"slot"}),
		live: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "promoreg",
			Name:      "live_promotions",
			Help:      "Promotions that are created and not deleted.",
		}),
	}
	reg.MustRegister(m.events, m.rejected, m.customers, m.live)
	return m
}

// Observe is a registry.Listener.
func (m *Metrics) Observe(evt registry.Event) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(string(evt.Type)).Inc()
	slot := strconv.FormatUint(evt.Slot, 10)
	switch evt.Type {
	case registry.EventPromotionCreated:
		m.live.Inc()
		m.customers.WithLabelValues(slot).Set(0)
	case registry.EventPromotionDeleted:
		m.live.Dec()
		m.customers.DeleteLabelValues(slot)
	default:
		m.customers.WithLabelValues(slot).Set(float64(evt.Customers))
	}
}

// Seed sets the gauges from restored state.
func (m *Metrics) Seed(promotions []*registry.Promotion) {
	if m == nil {
		return
	}
	m.live.Set(float64(len(promotions)))
	for _, p := range promotions {
		m.customers.WithLabelValues(strconv.FormatUint(p.Slot, 10)).Set(float64(p.CurrentCustomerCount))
	}
}

func (m *Metrics) Rejected(operation string, err error) {
	if m == nil || err == nil {
		return
	}
	kind := registry.Kind(err)
	if kind == "" {
		kind = "internal"
	}
	m.rejected.WithLabelValues(operation, kind).Inc()
}
