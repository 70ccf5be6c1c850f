package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the job cost engine.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration   *prometheus.HistogramVec
	externalErrors    *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	insightsGenerated *prometheus.CounterVec
	analysisRuns      *prometheus.CounterVec
}

// EngineSnapshot is a point-in-time view of engine counters, served by
// GET /v1/metrics/engine for dashboards that do not scrape Prometheus.
type EngineSnapshot struct {
	AnalysisRuns       int64   `json:"analysis_runs"`
	AnalysisFailures   int64   `json:"analysis_failures"`
	ErrorRate          float64 `json:"error_rate"`
	InsightsGenerated  int64   `json:"insights_generated"`
	CriticalInsights   int64   `json:"critical_insights"`
	CacheHitRate       float64 `json:"cache_hit_rate"`
	ExternalErrorCount int64   `json:"external_error_count"`
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobcost_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobcost_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobcost_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobcost_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		insightsGenerated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobcost_insights_generated_total",
				Help: "Total insights generated, by rule type and severity.",
			},
			[]string{"type", "severity"},
		),
		analysisRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobcost_analysis_runs_total",
				Help: "Total analysis runs processed.",
			},
			[]string{"status"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrInsight counts one generated insight by rule type and severity.
func (m *Metrics) IncrInsight(insightType, severity string) {
	m.insightsGenerated.WithLabelValues(insightType, severity).Inc()
}

// IncrAnalysisRun counts one analysis run with a status label.
func (m *Metrics) IncrAnalysisRun(status string) {
	m.analysisRuns.WithLabelValues(status).Inc()
}

// GetEngineSnapshot returns current counter values for the
// GET /v1/metrics/engine endpoint.
// Note: Prometheus counters expose cumulative values.
func (m *Metrics) GetEngineSnapshot() *EngineSnapshot {
	runs := getCounterValue(m.analysisRuns, "success") + getCounterValue(m.analysisRuns, "error")
	failures := getCounterValue(m.analysisRuns, "error")
	cacheHits := getCounterValue(m.cacheHits, "analysis")
	cacheMisses := getCounterValue(m.cacheMisses, "analysis")

	var critical float64
	for _, t := range []string{"variance", "anomaly", "prediction", "optimization", "waste", "comparison"} {
		critical += getCounterValue(m.insightsGenerated, t, "critical")
	}
	var generated float64
	for _, t := range []string{"variance", "anomaly", "prediction", "optimization", "waste", "comparison"} {
		for _, s := range []string{"info", "warning", "critical"} {
			generated += getCounterValue(m.insightsGenerated, t, s)
		}
	}

	var externalErrors float64
	for _, svc := range []string{"jobs", "ledger", "bom", "budget", "insights"} {
		externalErrors += getCounterValue(m.externalErrors, svc)
	}

	errorRate := float64(0)
	if runs > 0 {
		errorRate = failures / runs
	}
	cacheHitRate := float64(0)
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &EngineSnapshot{
		AnalysisRuns:       int64(runs),
		AnalysisFailures:   int64(failures),
		ErrorRate:          errorRate,
		InsightsGenerated:  int64(generated),
		CriticalInsights:   int64(critical),
		CacheHitRate:       cacheHitRate,
		ExternalErrorCount: int64(externalErrors),
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
