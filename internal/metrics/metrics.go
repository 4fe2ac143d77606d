// Package metrics exposes the Prometheus instrumentation for the
// analysis pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors recorded by the analyzer and the HTTP
// layer. Construct once per process with New and share by pointer.
type Metrics struct {
	AnalysesTotal    *prometheus.CounterVec
	AnalysisFailures *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	ProviderCalls    *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	DriftScore       prometheus.Histogram
	IssuesPerRequest prometheus.Histogram
	HTTPRequests     *prometheus.CounterVec
}

// New registers the pipeline collectors on the given registerer. Tests
// pass a fresh prometheus.NewRegistry to keep registrations isolated.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AnalysesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "driftscan_analyses_total",
			Help: "Completed analysis requests by provider and file type",
		}, []string{"provider", "file_type"}),
		AnalysisFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "driftscan_ai_failures_total",
			Help: "AI provider calls that failed and degraded to the rule engine",
		}, []string{"provider", "reason"}),
		AnalysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "driftscan_analysis_duration_seconds",
			Help:    "End to end analysis latency",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		ProviderCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "driftscan_provider_calls_total",
			Help: "AI provider invocations by provider and outcome",
		}, []string{"provider", "outcome"}),
		ProviderLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "driftscan_provider_latency_seconds",
			Help:    "AI provider call latency",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"provider"}),
		DriftScore: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "driftscan_drift_score",
			Help:    "Distribution of returned drift scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		IssuesPerRequest: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "driftscan_issues_per_request",
			Help:    "Number of issues returned per analysis",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "driftscan_http_requests_total",
			Help: "HTTP requests by method, path and status code",
		}, []string{"method", "path", "status"}),
	}
}

// ObserveAnalysis records the terminal counters for one completed
// analysis run.
func (m *Metrics) ObserveAnalysis(provider, fileType string, score float64, issues int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(provider, fileType).Inc()
	m.AnalysisDuration.Observe(elapsed.Seconds())
	m.DriftScore.Observe(score)
	m.IssuesPerRequest.Observe(float64(issues))
}

// ObserveProviderCall records one AI provider invocation.
func (m *Metrics) ObserveProviderCall(provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ProviderCalls.WithLabelValues(provider, outcome).Inc()
	m.ProviderLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// ObserveProviderFailure records a degraded AI call with its reason.
func (m *Metrics) ObserveProviderFailure(provider, reason string) {
	if m == nil {
		return
	}
	m.AnalysisFailures.WithLabelValues(provider, reason).Inc()
}
