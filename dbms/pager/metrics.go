package pager

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports pager I/O counters. A nil *Metrics is valid and counts
// nothing.
type Metrics struct {
	Reads       prometheus.Counter
	Writes      prometheus.Counter
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// NewMetrics creates the pager counters and registers them on reg when reg
// is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Reads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bpindex",
			Subsystem: "pager",
			Name:      "reads_total",
			Help:      "Pages read from disk.",
		}),
		Writes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bpindex",
			Subsystem: "pager",
			Name:      "writes_total",
			Help:      "Pages written to disk.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bpindex",
			Subsystem: "pager",
			Name:      "cache_hits_total",
			Help:      "Page reads served from the cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bpindex",
			Subsystem: "pager",
			Name:      "cache_misses_total",
			Help:      "Page reads that missed the cache.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Reads, m.Writes, m.CacheHits, m.CacheMisses)
	}
	return m
}

func (m *Metrics) read() {
	if m != nil {
		m.Reads.Inc()
	}
}

func (m *Metrics) write() {
	if m != nil {
		m.Writes.Inc()
	}
}

func (m *Metrics) cacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func (m *Metrics) cacheMiss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}
