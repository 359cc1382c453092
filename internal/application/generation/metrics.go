package generation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Duration prometheus.Histogram
	Items    *prometheus.CounterVec
}

// NewMetrics registers generation metrics on reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "easyflip",
			Subsystem: "generation",
			Name:      "item_duration_seconds",
			Help:      "Time to analyze and persist one SKU group.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40},
		}),
		Items: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "easyflip",
			Subsystem: "generation",
			Name:      "items_total",
			Help:      "SKU groups processed, by outcome.",
		}, []string{"outcome"}),
	}
}
