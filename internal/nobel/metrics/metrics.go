// Package metrics exposes Prometheus counters/histograms for the query
// engine's pipeline stages, grounded on the luxfi-consensus example's use
// of github.com/prometheus/client_golang (the teacher itself has no
// metrics stack of its own to adapt).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder wraps the engine's Prometheus instruments. A nil *Recorder is
// safe to call methods on — every method is a no-op in that case, so
// wiring metrics is optional for callers that don't register a registry.
type Recorder struct {
	queriesTotal   *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	chunksReturned prometheus.Histogram
	llmCostUSD     prometheus.Counter
}

// New registers the engine's instruments on reg and returns a Recorder.
// Pass a fresh *prometheus.Registry, or prometheus.DefaultRegisterer
// wrapped via prometheus.WrapRegistererWith if shared across services.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nobel_queries_total",
			Help: "Completed queries by answer_type and error_type.",
		}, []string{"answer_type", "error_type"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nobel_stage_duration_seconds",
			Help:    "Per-stage latency within the query pipeline.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		chunksReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nobel_chunks_returned",
			Help:    "Number of chunks returned by retrieval per query.",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}),
		llmCostUSD: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nobel_llm_cost_usd_total",
			Help: "Cumulative estimated LLM cost in USD.",
		}),
	}
	reg.MustRegister(r.queriesTotal, r.stageDuration, r.chunksReturned, r.llmCostUSD)
	return r
}

// ObserveStage records the wall-clock duration of a single pipeline stage.
func (r *Recorder) ObserveStage(stage string, since time.Time) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(time.Since(since).Seconds())
}

// ObserveQuery records the terminal outcome of a query.
func (r *Recorder) ObserveQuery(answerType, errorType string, chunkCount int, costUSD float64) {
	if r == nil {
		return
	}
	r.queriesTotal.WithLabelValues(answerType, errorType).Inc()
	r.chunksReturned.Observe(float64(chunkCount))
	r.llmCostUSD.Add(costUSD)
}
