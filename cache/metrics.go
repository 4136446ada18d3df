package cache

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// serviceMetrics counts cache hits per tier. The atomic copies back the
// programmatic getters used in tests and diagnostics; the prometheus
// counters feed operational dashboards when a Registerer is supplied.
type serviceMetrics struct {
	localHits  atomic.Int64
	sharedHits atomic.Int64

	localHitCounter  prometheus.Counter
	sharedHitCounter prometheus.Counter
}

func newServiceMetrics(reg prometheus.Registerer) *serviceMetrics {
	m := &serviceMetrics{
		localHitCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storage_cache",
			Name:      "local_hits_total",
			Help:      "Lookups served from the process-local tier.",
		}),
		sharedHitCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storage_cache",
			Name:      "shared_hits_total",
			Help:      "Lookups served from the shared tier.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.localHitCounter, m.sharedHitCounter)
	}
	return m
}

func (m *serviceMetrics) localHit() {
	m.localHits.Add(1)
	m.localHitCounter.Inc()
}

func (m *serviceMetrics) sharedHit() {
	m.sharedHits.Add(1)
	m.sharedHitCounter.Inc()
}
