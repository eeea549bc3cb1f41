// Package metrics provides the Prometheus-backed implementation of the
// engine's metrics collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/foodgenie/foodgenie/internal/ports"
)

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It provides real-time monitoring of grounding calls, analysis
// outcomes, and stage latency for the decision engine.
type PrometheusMetrics struct {
	groundingRequests *prometheus.CounterVec
	groundingTokens   *prometheus.CounterVec
	verdictCounter    *prometheus.CounterVec
	stageLatency      *prometheus.HistogramVec
	operationCounter  *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance and registers
// all required metrics in the global Prometheus registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		groundingRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grounding_requests_total",
				Help: "Total number of grounded-reasoning requests by provider and status.",
			},
			[]string{"provider", "model", "status"},
		),
		groundingTokens: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grounding_tokens_total",
				Help: "Total number of tokens exchanged with grounding providers.",
			},
			[]string{"provider", "model", "token_type"},
		),
		verdictCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_verdicts_total",
				Help: "Total number of verdicts produced by safety level and grounding outcome.",
			},
			[]string{"safety_level", "grounded"},
		),
		stageLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analysis_stage_duration_seconds",
				Help:    "Execution time of analysis stages and grounding calls.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		operationCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_operations_total",
				Help: "Total number of ancillary operations performed by the engine.",
			},
			[]string{"operation", "status"},
		),
	}
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	pm.stageLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case "grounding_requests_total":
		pm.groundingRequests.WithLabelValues(
			labels["provider"],
			labels["model"],
			labels["status"],
		).Add(value)
	case "grounding_tokens_total":
		pm.groundingTokens.WithLabelValues(
			labels["provider"],
			labels["model"],
			labels["token_type"],
		).Add(value)
	case "analysis_verdicts_total":
		pm.verdictCounter.WithLabelValues(
			labels["safety_level"],
			labels["grounded"],
		).Add(value)
	default:
		status, ok := labels["status"]
		if !ok {
			status = "success"
		}
		pm.operationCounter.WithLabelValues(metric, status).Add(value)
	}
}

// RecordHistogram implements the MetricsCollector interface by recording
// values in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	pm.stageLatency.WithLabelValues(metric).Observe(value)
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
