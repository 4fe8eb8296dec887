// Package metrics holds the Prometheus collectors for the Notion sync pipeline
// and the catalog API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotionRequests counts Notion API calls by endpoint and outcome.
	NotionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gapmap_notion_requests_total",
			Help: "Total number of Notion API requests",
		},
		[]string{"endpoint", "status"},
	)

	// ThrottleRetries counts in-place retries performed by the request throttler.
	ThrottleRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gapmap_throttle_retries_total",
			Help: "Total number of retried Notion requests",
		},
	)

	// ThrottleQueueDepth reports tasks waiting for dispatch.
	ThrottleQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gapmap_throttle_queue_depth",
			Help: "Number of requests waiting in the throttler queue",
		},
	)

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gapmap_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// RecordsSynced counts processed records per entity kind and refresh mode.
	RecordsSynced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gapmap_records_synced_total",
			Help: "Total number of Notion records processed",
		},
		[]string{"kind", "mode"},
	)

	// FallbackRecords counts records replaced by a placeholder object.
	FallbackRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gapmap_fallback_records_total",
			Help: "Total number of records that fell back to placeholder values",
		},
		[]string{"kind"},
	)

	// StageFailures counts aggregator stages that fell back to defaults.
	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gapmap_stage_failures_total",
			Help: "Total number of aggregator stages that failed",
		},
		[]string{"stage"},
	)

	// SyncDuration observes full aggregator runs.
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gapmap_sync_duration_seconds",
			Help:    "Duration of catalog sync runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	// CatalogReloads counts index reloads triggered by export changes.
	CatalogReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gapmap_catalog_reloads_total",
			Help: "Total number of catalog index reloads",
		},
		[]string{"result"},
	)

	// SSEClients reports connected event-stream clients.
	SSEClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gapmap_sse_clients",
			Help: "Number of connected SSE clients",
		},
	)
)
