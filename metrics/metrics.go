// Package metrics exposes Prometheus instruments for pipeline runs.
//
// Every Metrics value owns its registry so several orchestrators can coexist
// in one process without colliding on metric names.
package metrics

import (
	"net/http"

	"github.com/poiesic/pulse/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pulse"

// Run statuses.
const (
	StatusSuccess  = "success"
	StatusFailure  = "failure"
	StatusRejected = "rejected"
)

// Metrics holds the pipeline instruments.
type Metrics struct {
	registry *prometheus.Registry

	Runs         *prometheus.CounterVec
	Items        *prometheus.CounterVec
	RunDuration  prometheus.Histogram
	Tokens       prometheus.Counter
	CostUSD      prometheus.Counter
	RejectedRuns prometheus.Counter
}

// New creates the instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by final status",
		}, []string{"status"}),
		Items: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_items_total",
			Help:      "Items leaving each pipeline stage",
		}, []string{"stage"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_run_duration_seconds",
			Help:      "Wall time of pipeline runs",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
		}),
		Tokens: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_tokens_total",
			Help:      "Tokens sent to the embedding service",
		}),
		CostUSD: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cost_usd_total",
			Help:      "Estimated embedding spend in USD",
		}),
		RejectedRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_rejected_runs_total",
			Help:      "Run requests rejected because a run was in progress",
		}),
	}
}

// Registry returns the registry the instruments live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRun records a finished run. A failed run may carry a partial report.
func (m *Metrics) ObserveRun(report *core.RunReport, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	m.Runs.WithLabelValues(status).Inc()
	if report == nil {
		return
	}

	m.RunDuration.Observe(report.Duration().Seconds())
	c := report.Counts
	for stage, n := range map[string]int{
		"scraped":            c.Scraped,
		"processed":          c.Processed,
		"persisted":          c.Persisted,
		"embedded":           c.Embedded,
		"embedding_failures": c.EmbeddingFailures,
		"indexed":            c.Indexed,
		"index_failed":       c.IndexFailed,
		"index_skipped":      c.IndexSkipped,
	} {
		m.Items.WithLabelValues(stage).Add(float64(n))
	}
	m.Tokens.Add(float64(report.Tokens))
	m.CostUSD.Add(report.Cost)
}

// Rejected records a run request turned away by the single-flight guard.
func (m *Metrics) Rejected() {
	m.Runs.WithLabelValues(StatusRejected).Inc()
	m.RejectedRuns.Inc()
}
