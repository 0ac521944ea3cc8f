package metrics

import "github.com/prometheus/client_golang/prometheus"

// CacheMetrics counts read-through outcomes and invalidations per key family.
type CacheMetrics struct {
	hits          *prometheus.CounterVec
	misses        *prometheus.CounterVec
	errors        *prometheus.CounterVec
	invalidations *prometheus.CounterVec
}

func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	if reg == nil {
		return &CacheMetrics{}
	}
	hits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Read-through cache hits.",
	}, []string{"family"})
	misses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Read-through cache misses that fell back to the store.",
	}, []string{"family"})
	errs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "errors_total",
		Help:      "Cache operations that failed and were degraded.",
	}, []string{"family", "op"})
	invalidations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "invalidations_total",
		Help:      "Keys and families invalidated after commit.",
	}, []string{"family", "kind"})
	reg.MustRegister(hits, misses, errs, invalidations)
	return &CacheMetrics{hits: hits, misses: misses, errors: errs, invalidations: invalidations}
}

func (m *CacheMetrics) Hit(family string) {
	if m == nil || m.hits == nil {
		return
	}
	m.hits.WithLabelValues(normalizeLabel(family)).Inc()
}

func (m *CacheMetrics) Miss(family string) {
	if m == nil || m.misses == nil {
		return
	}
	m.misses.WithLabelValues(normalizeLabel(family)).Inc()
}

// Error counts a failed op (get, set, decode, del, pattern).
func (m *CacheMetrics) Error(family, op string) {
	if m == nil || m.errors == nil {
		return
	}
	m.errors.WithLabelValues(normalizeLabel(family), normalizeLabel(op)).Inc()
}

// Invalidated counts an invalidation; kind is "key" or "family".
func (m *CacheMetrics) Invalidated(family, kind string) {
	if m == nil || m.invalidations == nil {
		return
	}
	m.invalidations.WithLabelValues(normalizeLabel(family), normalizeLabel(kind)).Inc()
}
