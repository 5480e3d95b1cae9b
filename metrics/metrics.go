package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// RequestsTotal counts finished analyze requests by delivery mode and outcome.
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "analyze",
		Name:      "requests_total",
		Help:      "Total number of analyze requests, labeled by mode and outcome.",
	}, []string{"mode", "outcome"})

	StreamDeltasTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "analyze",
		Name:      "stream_deltas_total",
		Help:      "Total number of text-delta frames written to clients.",
	})

	DurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "analyze",
		Name:      "duration_seconds",
		Help:      "Time from request entry to the last byte written, labeled by mode.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"mode"})

	UpstreamErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "analyze",
		Name:      "upstream_errors_total",
		Help:      "Total number of failed upstream provider calls, labeled by provider.",
	}, []string{"provider"})

	// InFlight is the number of analyze requests currently holding an upstream call.
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "analyze",
		Name:      "in_flight",
		Help:      "Current number of analyze requests being relayed.",
	})

	EventsPublishErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "analyze",
		Subsystem: "events",
		Name:      "publish_error_total",
		Help:      "Total number of analysis events that could not be published.",
	})
)

// Register registers relay metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			RequestsTotal,
			StreamDeltasTotal,
			DurationSeconds,
			UpstreamErrorsTotal,
			InFlight,
			EventsPublishErrorsTotal,
		)
	})
}
