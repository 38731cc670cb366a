// Package metrics exports reconciliation cycle outcomes to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"HotlistTracker/internal/domain"
)

const namespace = "hotlist"

// Recorder holds the collectors registered for one process.
type Recorder struct {
	registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	topics        *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	fetchErrors   *prometheus.CounterVec
	lastSuccess   *prometheus.GaugeVec
	passes        *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Reconciliation cycles by final status",
			},
			[]string{"platform", "category", "status"},
		),
		topics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "topics_total",
				Help:      "Candidate outcomes per cycle",
			},
			[]string{"platform", "category", "outcome"},
		),
		cycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_duration_seconds",
				Help:      "Wall time of a reconciliation cycle",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"platform"},
		),
		fetchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_errors_total",
				Help:      "Snapshot fetch failures that aborted a cycle",
			},
			[]string{"platform", "category"},
		),
		lastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful or partial cycle",
			},
			[]string{"platform", "category"},
		),
		passes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "passes_total",
				Help:      "Collection passes by outcome",
			},
			[]string{"outcome"},
		),
	}

	r.registry.MustRegister(r.cycles, r.topics, r.cycleDuration, r.fetchErrors, r.lastSuccess, r.passes)
	return r
}

// ObserveCycle records one cycle result.
func (r *Recorder) ObserveCycle(res domain.CycleResult) {
	if r == nil {
		return
	}
	r.cycles.WithLabelValues(res.Platform, res.Category, string(res.Status)).Inc()

	outcomes := map[string]int{
		"inserted":  res.Inserted,
		"updated":   res.Updated,
		"duplicate": res.Duplicate,
		"error":     res.Errors,
		"retired":   len(res.Retired),
	}
	for outcome, n := range outcomes {
		if n > 0 {
			r.topics.WithLabelValues(res.Platform, res.Category, outcome).Add(float64(n))
		}
	}

	if d := res.Duration(); d > 0 {
		r.cycleDuration.WithLabelValues(res.Platform).Observe(d.Seconds())
	}
	if res.Status == domain.StatusSuccess || res.Status == domain.StatusPartial {
		r.lastSuccess.WithLabelValues(res.Platform, res.Category).Set(float64(res.FinishedAt.Unix()))
	}
}

// ObserveFetchError counts a fetch failure for a partition.
func (r *Recorder) ObserveFetchError(platform, category string) {
	if r == nil {
		return
	}
	r.fetchErrors.WithLabelValues(platform, category).Inc()
}

// ObservePass counts a finished collection pass.
func (r *Recorder) ObservePass(s domain.PassSummary) {
	if r == nil {
		return
	}
	outcome := "ok"
	if len(s.Failed) > 0 {
		outcome = "degraded"
	}
	r.passes.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Server returns an HTTP server exposing /metrics on addr.
func (r *Recorder) Server(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
