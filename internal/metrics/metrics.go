// Package metrics exposes inventory gauges and transition counters to
// Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/erazemk/eatmefirst/internal/stats"
)

const namespace = "eatmefirst"

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	registry    *prometheus.Registry
	items       *prometheus.GaugeVec
	expiring    prometheus.Gauge
	wasteRate   prometheus.Gauge
	transitions *prometheus.CounterVec
	swept       prometheus.Counter
	reminders   *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		items: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "items",
			Help:      "Number of items per status.",
		}, []string{"status"}),
		expiring: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "items_expiring_soon",
			Help:      "Active items within the expiring-soon threshold.",
		}),
		wasteRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "waste_rate",
			Help:      "Share of finished items that were wasted.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_transitions_total",
			Help:      "Item commands applied, by command.",
		}, []string{"command"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_swept_total",
			Help:      "Active items moved to expired by the sweep.",
		}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_total",
			Help:      "Daily reminders by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.items, m.expiring, m.wasteRate, m.transitions, m.swept, m.reminders,
	)
	return m
}

// ObserveSnapshot publishes the latest stats.
func (m *Metrics) ObserveSnapshot(s stats.Snapshot) {
	m.items.WithLabelValues("active").Set(float64(s.TotalActive))
	m.items.WithLabelValues("consumed").Set(float64(s.Consumed))
	m.items.WithLabelValues("expired").Set(float64(s.Expired))
	m.expiring.Set(float64(s.ExpiringSoon))
	m.wasteRate.Set(s.WasteRate)
}

// ObserveCommand counts a successful command such as "add" or "consume".
func (m *Metrics) ObserveCommand(command string) {
	m.transitions.WithLabelValues(command).Inc()
}

// ObserveSweep counts items expired by a sweep.
func (m *Metrics) ObserveSweep(n int64) {
	if n > 0 {
		m.swept.Add(float64(n))
	}
}

// ObserveReminder counts a reminder run: "sent", "empty" or "failed".
func (m *Metrics) ObserveReminder(outcome string) {
	m.reminders.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
