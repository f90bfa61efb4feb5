// Package metrics defines the Prometheus collectors of the chama client.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the client.
type Metrics struct {
	// Gateway
	Requests       *prometheus.CounterVec
	RequestLatency *prometheus.HistogramVec

	// Live synchronizer
	Fetches         *prometheus.CounterVec
	FetchLatency    *prometheus.HistogramVec
	EventsCoalesced *prometheus.CounterVec
	StaleDiscarded  *prometheus.CounterVec

	// Realtime channel
	RealtimeEvents     *prometheus.CounterVec
	RealtimeReconnects prometheus.Counter
	RealtimeConnected  prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered on registry.
// A nil registry creates unregistered collectors, which tests use to avoid
// duplicate registration panics.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chama_gateway_requests_total",
				Help: "Backend requests by route and status class",
			},
			[]string{"method", "route", "status"},
		),
		RequestLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chama_gateway_request_duration_seconds",
				Help:    "Backend request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Fetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chama_sync_fetches_total",
				Help: "Snapshot fetches by view and outcome",
			},
			[]string{"view", "outcome"},
		),
		FetchLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chama_sync_fetch_duration_seconds",
				Help:    "Snapshot fetch latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"view"},
		),
		EventsCoalesced: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chama_sync_events_coalesced_total",
				Help: "Invalidation events folded into an already scheduled re-fetch",
			},
			[]string{"view"},
		),
		StaleDiscarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chama_sync_stale_responses_total",
				Help: "Fetch responses discarded because a newer fetch superseded them",
			},
			[]string{"view"},
		),
		RealtimeEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chama_realtime_events_total",
				Help: "Realtime events received by name",
			},
			[]string{"event"},
		),
		RealtimeReconnects: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "chama_realtime_reconnects_total",
				Help: "Realtime reconnect attempts",
			},
		),
		RealtimeConnected: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "chama_realtime_connected",
				Help: "1 while the realtime subscription is up",
			},
		),
	}
}

// Nop returns unregistered collectors.
func Nop() *Metrics {
	return NewMetrics(nil)
}

// ObserveRequest records one gateway request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, route, statusClass(status)).Inc()
	m.RequestLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveFetch records one snapshot fetch.
func (m *Metrics) ObserveFetch(view, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Fetches.WithLabelValues(view, outcome).Inc()
	m.FetchLatency.WithLabelValues(view).Observe(d.Seconds())
}

func statusClass(status int) string {
	if status == 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}

// SetRealtimeConnected flips the connection gauge.
func (m *Metrics) SetRealtimeConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.RealtimeConnected.Set(1)
		return
	}
	m.RealtimeConnected.Set(0)
}

// RealtimeReconnect counts one reconnect attempt.
func (m *Metrics) RealtimeReconnect() {
	if m == nil {
		return
	}
	m.RealtimeReconnects.Inc()
}

// RealtimeEvent counts one received event.
func (m *Metrics) RealtimeEvent(name string) {
	if m == nil {
		return
	}
	m.RealtimeEvents.WithLabelValues(name).Inc()
}

// EventCoalesced counts an event folded into an already scheduled fetch.
func (m *Metrics) EventCoalesced(view string) {
	if m == nil {
		return
	}
	m.EventsCoalesced.WithLabelValues(view).Inc()
}

// StaleResponse counts a fetch result discarded as superseded.
func (m *Metrics) StaleResponse(view string) {
	if m == nil {
		return
	}
	m.StaleDiscarded.WithLabelValues(view).Inc()
}
