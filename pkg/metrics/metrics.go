package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vincenzo_exports_total",
			Help: "Total number of export attempts.",
		},
		[]string{"status", "error_type"}, // status: success, failed
	)

	ImageFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vincenzo_image_fallbacks_total",
			Help: "Exports that used the bundled placeholder image.",
		},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vincenzo_stage_duration_seconds",
			Help:    "Duration of each pipeline stage.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"stage"}, // fetch, extract, image, export
	)
)
