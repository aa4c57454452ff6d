/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// API metrics
var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grimnir_player_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grimnir_player_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	APIActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "grimnir_player_api_active_connections",
			Help: "Number of API requests currently being processed",
		},
	)
)

// Database metrics
var (
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grimnir_player_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation", "table"},
	)

	DatabaseErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grimnir_player_db_errors_total",
			Help: "Total number of database errors",
		},
		[]string{"operation", "reason"},
	)

	DatabaseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "grimnir_player_db_connections_active",
			Help: "Number of open database connections",
		},
	)
)

// Playback engine metrics
var (
	EngineTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grimnir_player_engine_ticks_total",
			Help: "Total number of playback decision evaluations",
		},
	)

	EngineTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "grimnir_player_engine_tick_duration_seconds",
			Help:    "Duration of each playback decision evaluation in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
	)

	EngineDecisionChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grimnir_player_engine_decision_changes_total",
			Help: "Total number of active occurrence changes per track",
		},
		[]string{"track"},
	)

	EnginePreemptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grimnir_player_engine_preemptions_total",
			Help: "Total number of preemptions observed per track",
		},
		[]string{"track"},
	)
)

// Schedule snapshot metrics
var (
	SnapshotBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "grimnir_player_snapshot_build_duration_seconds",
			Help:    "Duration of schedule snapshot rebuilds in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	SnapshotVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "grimnir_player_snapshot_version",
			Help: "Monotonic version of the published schedule snapshot",
		},
	)

	SnapshotLastBuildTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "grimnir_player_snapshot_last_build_timestamp_seconds",
			Help: "Unix timestamp of the most recent snapshot rebuild",
		},
	)

	SnapshotOccurrences = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "grimnir_player_snapshot_occurrences",
			Help: "Number of materialized occurrences in the published snapshot",
		},
		[]string{"track"},
	)

	ExpansionDiagnosticsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grimnir_player_expansion_diagnostics_total",
			Help: "Total number of diagnostics emitted during schedule expansion",
		},
		[]string{"code"},
	)
)

// Snapshot cache metrics
var (
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grimnir_player_cache_hits_total",
			Help: "Total number of snapshot cache hits",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grimnir_player_cache_misses_total",
			Help: "Total number of snapshot cache misses",
		},
	)

	CacheErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grimnir_player_cache_errors_total",
			Help: "Total number of snapshot cache errors",
		},
	)
)

// Event fanout metrics
var (
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grimnir_player_events_published_total",
			Help: "Total number of events published to the bus",
		},
		[]string{"type"},
	)

	DecisionStreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "grimnir_player_decision_stream_clients",
			Help: "Number of connected decision stream websocket clients",
		},
	)
)

// Export and import metrics
var (
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grimnir_player_exports_total",
			Help: "Total number of schedule exports",
		},
		[]string{"format", "status"},
	)

	ImportRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grimnir_player_import_rows_total",
			Help: "Total number of rows imported from legacy systems",
		},
		[]string{"source", "entity"},
	)
)

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
