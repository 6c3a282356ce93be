package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Conversion results
const (
	ResultPrimitive = "primitive"
	ResultOriginal  = "original"
	ResultCached    = "cached"
	ResultCreated   = "created"
	ResultError     = "error"
)

// Revocation scopes
const (
	ScopeRecord   = "record"
	ScopeField    = "field"
	ScopeMembrane = "membrane"
)

// Metrics holds the Prometheus metrics of one or more membranes.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Conversions    *prometheus.CounterVec
	ProxiesCreated *prometheus.CounterVec
	RecordsLive    prometheus.Gauge
	Revocations    *prometheus.CounterVec
	LeaksBlocked   prometheus.Counter
	ListenerAborts *prometheus.CounterVec
}

// NewMetrics creates membrane metrics registered on reg
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Conversions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversions_total",
				Help:      "Total number of cross-field value conversions by result",
			},
			[]string{"result"},
		),
		ProxiesCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "proxies_created_total",
				Help:      "Total number of proxies created per destination field",
			},
			[]string{"field"},
		),
		RecordsLive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "records_live",
				Help:      "Number of identity records not yet reclaimed",
			},
		),
		Revocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "revocations_total",
				Help:      "Total number of revocations by scope",
			},
			[]string{"scope"},
		),
		LeaksBlocked: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "leaks_blocked_total",
				Help:      "Total number of conversions refused to keep internal objects from leaking",
			},
		),
		ListenerAborts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "listener_aborts_total",
				Help:      "Total number of conversions aborted by a proxy listener",
			},
			[]string{"field"},
		),
	}
}

// ObserveConversion counts a conversion outcome
func (m *Metrics) ObserveConversion(result string) {
	if m == nil {
		return
	}
	m.Conversions.WithLabelValues(result).Inc()
}

// ProxyCreated counts a new proxy and its record when fresh
func (m *Metrics) ProxyCreated(field string) {
	if m == nil {
		return
	}
	m.ProxiesCreated.WithLabelValues(field).Inc()
}

// RecordCreated tracks a new identity record
func (m *Metrics) RecordCreated() {
	if m == nil {
		return
	}
	m.RecordsLive.Inc()
}

// RecordReclaimed tracks a record freed by the garbage collector
func (m *Metrics) RecordReclaimed() {
	if m == nil {
		return
	}
	m.RecordsLive.Dec()
}

// Revoked counts a revocation in the given scope
func (m *Metrics) Revoked(scope string) {
	if m == nil {
		return
	}
	m.Revocations.WithLabelValues(scope).Inc()
}

// LeakBlocked counts a refused conversion
func (m *Metrics) LeakBlocked() {
	if m == nil {
		return
	}
	m.LeaksBlocked.Inc()
}

// ListenerAborted counts a listener-aborted conversion
func (m *Metrics) ListenerAborted(field string) {
	if m == nil {
		return
	}
	m.ListenerAborts.WithLabelValues(field).Inc()
}
