package landing

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains Prometheus metrics for the landing server.
type Metrics struct {
	requests *prometheus.CounterVec
	upstream *prometheus.HistogramVec
	cache    *prometheus.CounterVec
}

// NewMetrics creates and registers the landing server metrics.
func NewMetrics(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "landing_requests_total",
				Help: "Total number of requests by route and status code",
			},
			[]string{"route", "code"},
		),
		upstream: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "landing_upstream_duration_seconds",
				Help:    "Time spent waiting for the satellite API",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		cache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "landing_cache_lookups_total",
				Help: "Proxy cache lookups by result",
			},
			[]string{"result"},
		),
	}
	for _, c := range []prometheus.Collector{m.requests, m.upstream, m.cache} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
