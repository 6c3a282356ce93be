/*
Package monitoring provides Prometheus metrics for membranes.

# Metrics

  - conversions_total{result}: primitive, original, cached, created, error
  - proxies_created_total{field}
  - records_live: identity records not yet reclaimed by the GC
  - revocations_total{scope}: record, field, membrane
  - leaks_blocked_total
  - listener_aborts_total{field}

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg, "membrane")
	m := membrane.New(membrane.WithMetrics(metrics))

Metrics are registered on the given registerer rather than the global one so
that several membranes (and tests) can coexist.
*/
package monitoring
