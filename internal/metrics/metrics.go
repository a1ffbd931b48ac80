package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "screener_sessions_active",
		Help: "Interview sessions with a call in progress",
	})

	SessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "screener_session_transitions_total",
		Help: "Session status transitions by target status",
	}, []string{"status"})

	Webhooks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "screener_webhooks_total",
		Help: "Provider callbacks by kind and outcome",
	}, []string{"kind", "outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "screener_pipeline_stage_duration_seconds",
		Help:    "Per-stage latency of the response pipeline",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"stage"})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "screener_pipeline_errors_total",
		Help: "Error counts by stage",
	}, []string{"stage", "error_type"})

	PipelineInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "screener_pipeline_in_flight",
		Help: "Responses currently being transcribed or scored",
	})

	Aggregations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "screener_aggregations_total",
		Help: "Aggregate results by source",
	}, []string{"source"})
)
