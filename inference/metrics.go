package inference

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains Prometheus metrics for detector runs.
type Metrics struct {
	predictions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	detections  *prometheus.CounterVec
}

// NewMetrics creates and registers detector metrics.
//
// Arguments:
//   - registry: Where the collectors are registered.
//
// Returns:
//   - *Metrics: The metrics.
//   - error: If a collector is already registered.
func NewMetrics(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inference_predictions_total",
				Help: "Total number of predictions by provider and status",
			},
			[]string{"provider", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inference_duration_seconds",
				Help:    "Time spent in a prediction, preprocessing included",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"provider"},
		),
		detections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inference_detections_total",
				Help: "Total number of detections by class",
			},
			[]string{"class"},
		),
	}
	for _, c := range []prometheus.Collector{m.predictions, m.duration, m.detections} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NewTextfileMetrics creates metrics on a private registry for one command run. The returned
// func writes them to path in the text exposition format, for a node exporter textfile
// collector. An empty path returns nil metrics and a no-op.
func NewTextfileMetrics(path string) (*Metrics, func() error, error) {
	if path == "" {
		return nil, func() error { return nil }, nil
	}
	registry := prometheus.NewRegistry()
	m, err := NewMetrics(registry)
	if err != nil {
		return nil, nil, err
	}
	return m, func() error {
		return errors.Wrapf(prometheus.WriteToTextfile(path, registry), "writing metrics to %s", path)
	}, nil
}
