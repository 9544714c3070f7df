// Package metrics provides Prometheus metrics for an endpoint instance.
//
// Grounded on the teacher pack's Muti Metroo internal/metrics: a single
// Metrics struct of promauto-registered collectors, a registry-scoped
// constructor so tests don't collide on the global DefaultRegisterer,
// and one Record*/Set* helper per event the endpoint emits. The event
// channel (device/endpoint.Event) and this package are independent
// observers of the same underlying occurrences — this package never
// replaces the event channel, it supplements it for scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "overlay_endpoint"

// Metrics holds every collector exposed by an endpoint instance.
type Metrics struct {
	CacheMisses          prometheus.Counter
	RefloodsTriggered    prometheus.Counter
	UnreachableDestinations prometheus.Counter
	SendErrors           *prometheus.CounterVec
	ControllerShortcuts  prometheus.Counter
	CacheEntriesInFlight prometheus.Gauge
}

// New creates a Metrics instance registered against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total PacketCache lookups that found no cached fragment",
		}),
		RefloodsTriggered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reflood_triggers_total",
			Help:      "Total refloods triggered (startup, AddSender, RemoveSender, InitFlooding, or reflood-threshold breach)",
		}),
		UnreachableDestinations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unreachable_destinations_total",
			Help:      "Total outbound replies or resends dropped for lack of a route",
		}),
		SendErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_errors_total",
			Help:      "Total channel sends to a neighbour that failed, by neighbour id",
		}, []string{"neighbour"}),
		ControllerShortcuts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "controller_shortcuts_total",
			Help:      "Total administrative packets (Ack/Nack/FloodResponse) addressed back to self",
		}),
		CacheEntriesInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries_in_flight",
			Help:      "Current number of entries held by the PacketCache",
		}),
	}
}

// RecordCacheMiss records a PacketCache lookup that found nothing.
func (m *Metrics) RecordCacheMiss() { m.CacheMisses.Inc() }

// RecordReflood records a reflood being triggered.
func (m *Metrics) RecordReflood() { m.RefloodsTriggered.Inc() }

// RecordUnreachable records a dropped reply or resend.
func (m *Metrics) RecordUnreachable() { m.UnreachableDestinations.Inc() }

// RecordSendError records a failed send to neighbour.
func (m *Metrics) RecordSendError(neighbour string) {
	m.SendErrors.WithLabelValues(neighbour).Inc()
}

// RecordControllerShortcut records a self-addressed administrative packet.
func (m *Metrics) RecordControllerShortcut() { m.ControllerShortcuts.Inc() }

// SetCacheEntriesInFlight sets the current PacketCache size.
func (m *Metrics) SetCacheEntriesInFlight(n int) {
	m.CacheEntriesInFlight.Set(float64(n))
}
