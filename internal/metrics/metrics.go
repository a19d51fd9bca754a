// Package metrics owns the Prometheus registry exposed at /metrics.
package metrics

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "adcraft"

// Metrics groups the collectors updated by the generation pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	filterRejections *prometheus.CounterVec
	campaigns        prometheus.Counter
	jobs             *prometheus.CounterVec
	dbOpen           prometheus.Gauge
	dbInUse          prometheus.Gauge
}

// New creates a registry with the process and Go collectors plus the
// adcraft collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "hits_total",
			Help: "Generation requests answered from the response cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "misses_total",
			Help: "Generation requests sent to the completion service.",
		}),
		filterRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "filter", Name: "rejections_total",
			Help: "Generated texts rejected by a content filter.",
		}, []string{"filter"}),
		campaigns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "campaigns_created_total",
			Help: "Campaigns assembled and persisted.",
		}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "jobs", Name: "finished_total",
			Help: "Background campaign jobs by final status.",
		}, []string{"status"}),
		dbOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "db", Name: "open_connections",
			Help: "Open database connections.",
		}),
		dbInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "db", Name: "in_use_connections",
			Help: "Database connections currently in use.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cacheHits, m.cacheMisses, m.filterRejections, m.campaigns, m.jobs,
		m.dbOpen, m.dbInUse,
	)
	return m
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.cacheMisses.Inc()
	}
}

// FilterRejected counts a rejection by the named filter.
func (m *Metrics) FilterRejected(filter string) {
	if m != nil {
		m.filterRejections.WithLabelValues(filter).Inc()
	}
}

func (m *Metrics) CampaignCreated() {
	if m != nil {
		m.campaigns.Inc()
	}
}

// JobFinished counts a background job ending with status.
func (m *Metrics) JobFinished(status string) {
	if m != nil {
		m.jobs.WithLabelValues(status).Inc()
	}
}

// UpdateDBStats copies the pool statistics of db into the db gauges.
func (m *Metrics) UpdateDBStats(db *sql.DB) {
	if m == nil || db == nil {
		return
	}
	st := db.Stats()
	m.dbOpen.Set(float64(st.OpenConnections))
	m.dbInUse.Set(float64(st.InUse))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
