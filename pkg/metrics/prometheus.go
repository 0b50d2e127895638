package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	upstreamAttempts *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	predictions      *prometheus.CounterVec
	cacheOps         *prometheus.CounterVec
	rateLimited      *prometheus.CounterVec
	eventsPublished  *prometheus.CounterVec
}

// New registers the recorder's collectors with the default registerer.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers collectors with reg. Tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		upstreamAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecaster_upstream_attempts_total",
				Help: "Outbound API attempts by service and outcome",
			},
			[]string{"service", "outcome"},
		),
		upstreamLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forecaster_upstream_duration_seconds",
				Help:    "Duration of outbound API calls including retries",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"service"},
		),
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecaster_predictions_total",
				Help: "Predictions by outcome",
			},
			[]string{"outcome"},
		),
		cacheOps: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecaster_cache_operations_total",
				Help: "Cache lookups by backend and result",
			},
			[]string{"backend", "result"},
		),
		rateLimited: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecaster_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"route"},
		),
		eventsPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecaster_events_published_total",
				Help: "Prediction events sent to the broker by outcome",
			},
			[]string{"outcome"},
		),
	}
}

func (r *Recorder) RecordUpstreamAttempt(service, outcome string) {
	r.upstreamAttempts.WithLabelValues(service, outcome).Inc()
}

func (r *Recorder) RecordUpstreamLatency(service string, seconds float64) {
	r.upstreamLatency.WithLabelValues(service).Observe(seconds)
}

func (r *Recorder) RecordPrediction(outcome string) {
	r.predictions.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordCache(backend, result string) {
	r.cacheOps.WithLabelValues(backend, result).Inc()
}

func (r *Recorder) RecordRateLimited(route string) {
	r.rateLimited.WithLabelValues(route).Inc()
}

func (r *Recorder) RecordEventPublished(outcome string) {
	r.eventsPublished.WithLabelValues(outcome).Inc()
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordUpstreamAttempt(string, string) {}
func (Nop) RecordUpstreamLatency(string, float64) {}
func (Nop) RecordPrediction(string) {}
func (Nop) RecordCache(string, string) {}
func (Nop) RecordRateLimited(string) {}
func (Nop) RecordEventPublished(string) {}
