// Package metrics registers the extractor's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const Namespace = "ethx"

// Metrics holds every collector the extractor emits. A nil *Metrics is valid
// and turns all recording methods into no-ops, so wiring is optional.
type Metrics struct {
	rpcCalls    *prometheus.CounterVec
	rpcDuration *prometheus.HistogramVec
	rpcInFlight prometheus.Gauge
	retries     prometheus.Counter

	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheEvictions prometheus.Counter
	cacheSize      prometheus.Gauge

	breakerOpens prometheus.Counter
}

// New creates a Metrics instance and registers all collectors with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rpc_calls_total",
			Help:      "Total JSON-RPC calls by method and outcome",
		}, []string{"method", "outcome"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "rpc_duration_seconds",
			Help:      "JSON-RPC call latency by method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		rpcInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "rpc_in_flight",
			Help:      "JSON-RPC calls currently in flight",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "transport_retries_total",
			Help:      "Total transport-level retry attempts",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_hits_total",
			Help:      "Cache lookups served from memory",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_misses_total",
			Help:      "Cache lookups that required a fetch",
		}),
		cacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_evictions_total",
			Help:      "Entries evicted from the cache",
		}),
		cacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "cache_entries",
			Help:      "Entries currently held in the cache",
		}),
		breakerOpens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "breaker_opens_total",
			Help:      "Circuit breaker transitions to the open state",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.rpcCalls, m.rpcDuration, m.rpcInFlight, m.retries,
		m.cacheHits, m.cacheMisses, m.cacheEvictions, m.cacheSize,
		m.breakerOpens,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ObserveRPCCall(method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.rpcCalls.WithLabelValues(method, outcome).Inc()
	m.rpcDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) RPCStarted() {
	if m == nil {
		return
	}
	m.rpcInFlight.Inc()
}

func (m *Metrics) RPCFinished() {
	if m == nil {
		return
	}
	m.rpcInFlight.Dec()
}

func (m *Metrics) Retry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

func (m *Metrics) CacheEviction() {
	if m == nil {
		return
	}
	m.cacheEvictions.Inc()
}

func (m *Metrics) CacheSize(n int) {
	if m == nil {
		return
	}
	m.cacheSize.Set(float64(n))
}

func (m *Metrics) BreakerOpened() {
	if m == nil {
		return
	}
	m.breakerOpens.Inc()
}
