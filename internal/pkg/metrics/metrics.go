// Package metrics provides Prometheus metrics for the Kortex backend
// (RED + scan/workflow pipeline + WebSocket).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kortex"

var (
	// HTTPRequestTotal counts requests by method, path, status (RED: rate).
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, path, and status.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDurationSeconds is request latency histogram (RED: duration).
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10), // 1ms to ~9.3s
		},
		[]string{"method", "path"},
	)

	// ScansStartedTotal counts scan sessions by mode.
	ScansStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_started_total",
			Help:      "Total number of scan sessions started, by mode.",
		},
		[]string{"mode"},
	)

	// ScansFinishedTotal counts terminal scan outcomes (completed/failed/stopped).
	ScansFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_finished_total",
			Help:      "Total number of scan sessions reaching a terminal status.",
		},
		[]string{"status"},
	)

	// ScanDurationSeconds measures wall time of a full scan run.
	ScanDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Scan session duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17m
		},
	)

	// AnalyzerCallDurationSeconds measures one analyzer invocation.
	AnalyzerCallDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analyzer_call_duration_seconds",
			Help:      "Analyzer call duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		},
	)

	// IssuesFoundTotal counts issues emitted into scan results, by severity.
	IssuesFoundTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issues_found_total",
			Help:      "Total number of issues found during scans, by severity.",
		},
		[]string{"severity"},
	)

	// WorkflowsFinishedTotal counts fix workflow outcomes; failed_step is the
	// gate where a failed workflow stopped ("" for completed).
	WorkflowsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fix_workflows_finished_total",
			Help:      "Total number of fix workflows reaching a terminal status.",
		},
		[]string{"status", "failed_step"},
	)

	// WorkflowGateDurationSeconds measures each gate of the fix pipeline.
	WorkflowGateDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fix_workflow_gate_duration_seconds",
			Help:      "Fix workflow gate duration in seconds, by step.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4m
		},
		[]string{"step"},
	)

	// WebSocketConnectionsActive is current number of scan-progress subscribers.
	WebSocketConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections_active",
			Help:      "Number of active WebSocket connections.",
		},
	)

	// GraphCacheHitsTotal counts dependency-graph cache hits.
	GraphCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_cache_hits_total",
			Help:      "Total number of dependency graph cache hits.",
		},
	)
)
