// Package metrics holds the prometheus collectors of the extraction service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "planextract"

var (
	// ChatCalls counts chat completions by provider and outcome.
	ChatCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chat_calls_total",
		Help:      "Chat completion calls by provider and outcome.",
	}, []string{"provider", "outcome"})

	// ChatTokens counts tokens reported by chat providers.
	ChatTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chat_tokens_total",
		Help:      "Tokens reported by chat providers, by kind (prompt, completion, cached).",
	}, []string{"provider", "kind"})

	// ChatCost accumulates reported chat cost in provider credits.
	ChatCost = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chat_cost_total",
		Help:      "Cost reported by chat providers.",
	}, []string{"provider"})

	// ChatDuration observes chat call latency.
	ChatDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "chat_duration_seconds",
		Help:      "Chat completion latency.",
		Buckets:   []float64{1, 2, 5, 10, 20, 40, 80, 160},
	}, []string{"provider"})

	// TemplateLookups counts template store lookups by cache result.
	TemplateLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "template_lookups_total",
		Help:      "Template store lookups by result (hit, miss, error).",
	}, []string{"result"})

	// PipelineRuns counts finished pipeline runs by option and message kind.
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_runs_total",
		Help:      "Pipeline runs by option and outcome.",
	}, []string{"option", "outcome"})

	// StageDuration observes per-stage latency.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Pipeline stage latency.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"stage"})

	// PlansExtracted counts per-plan extractions by outcome.
	PlansExtracted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "plans_extracted_total",
		Help:      "Per-plan extractions by outcome.",
	}, []string{"outcome"})

	// JobsInFlight tracks async jobs that are queued or running.
	JobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "jobs_in_flight",
		Help:      "Async jobs queued or running.",
	})
)

// ObserveStage records the time elapsed since start for stage.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
