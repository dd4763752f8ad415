package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"resforge/internal/engine"
)

type Metrics struct {
	Registry  *prometheus.Registry
	runs      *prometheus.CounterVec
	problems  *prometheus.CounterVec
	artifacts *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewMetrics registers on a private registry so several servers can live in
// one process, tests mostly.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resforge_runs_total",
			Help: "Generation runs by profile and outcome.",
		}, []string{"profile", "outcome"}),
		problems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resforge_problems_total",
			Help: "Reported problems by stage and severity.",
		}, []string{"stage", "severity"}),
		artifacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resforge_artifacts_total",
			Help: "Emitted artifacts by kind and manifest status.",
		}, []string{"kind", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "resforge_run_duration_seconds",
			Help:    "Wall time of generation runs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"profile"}),
	}
	m.Registry.MustRegister(m.runs, m.problems, m.artifacts, m.duration,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

func (m *Metrics) observe(profile, outcome string, res *engine.Result, took time.Duration) {
	m.runs.WithLabelValues(profile, outcome).Inc()
	m.duration.WithLabelValues(profile).Observe(took.Seconds())
	if res == nil {
		return
	}
	for _, p := range res.Problems {
		m.problems.WithLabelValues(string(p.Stage), string(p.Severity)).Inc()
	}
	if res.Manifest != nil {
		for _, e := range res.Manifest.Entries {
			m.artifacts.WithLabelValues(e.ArtifactKind, string(e.Status)).Inc()
		}
	}
}
