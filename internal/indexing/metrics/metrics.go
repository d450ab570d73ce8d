package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsTotal tracks notifications received per chain
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgersync_notifications_total",
			Help: "Total number of chain notifications received",
		},
		[]string{"chain"},
	)

	// CyclesTotal tracks sync cycles per chain and outcome
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgersync_cycles_total",
			Help: "Total number of sync cycles",
		},
		[]string{"chain", "outcome"},
	)

	// CycleDuration tracks how long one sync cycle takes
	CycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledgersync_cycle_duration_seconds",
			Help:    "Sync cycle latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain"},
	)

	// RecordSyncTotal tracks per-kind results inside cycles
	RecordSyncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgersync_record_sync_total",
			Help: "Per record kind sync results",
		},
		[]string{"chain", "kind", "status"},
	)

	// SinkWritesTotal tracks writes to the external sink
	SinkWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgersync_sink_writes_total",
			Help: "Total number of sink writes",
		},
		[]string{"table", "op", "status"},
	)

	// SinkLatency tracks sink write latency
	SinkLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledgersync_sink_latency_seconds",
			Help:    "Sink write latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table", "op"},
	)

	// QueryLatency tracks application query latency
	QueryLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledgersync_query_latency_seconds",
			Help:    "Application query latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain", "status"},
	)

	// WorkersActive tracks the number of registered chain workers
	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledgersync_workers_active",
			Help: "Number of chain workers in the registry",
		},
	)

	// SpawnsTotal tracks worker spawn attempts
	SpawnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgersync_spawns_total",
			Help: "Chain worker spawn attempts",
		},
		[]string{"status"},
	)

	// DiscoveryOffersTotal tracks chain ids offered by discovery parents
	DiscoveryOffersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledgersync_discovery_offers_total",
			Help: "Chain ids offered to the manager by discovery",
		},
	)

	// DBConnectionPoolUsage tracks the percentage of open database connections
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledgersync_db_connection_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)

	// EventsEmittedTotal tracks change events per emitter outcome
	EventsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgersync_events_emitted_total",
			Help: "Change events emitted",
		},
		[]string{"table", "status"},
	)
)

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)
