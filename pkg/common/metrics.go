package common

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LastProcessedNonce = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tx_event_processor_last_processed_nonce",
		Help: "Last block nonce committed to the cursor store per shard",
	}, []string{"shard"})

	TransactionsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tx_event_processor_transactions_processed_total",
		Help: "Total transactions handed to the batch handler",
	}, []string{"shard"})

	BatchProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tx_event_processor_batch_processing_duration_seconds",
		Help:    "Time taken to handle a shard batch",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"shard"})

	Passes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tx_event_processor_passes_total",
		Help: "Total scheduler ticks by outcome",
	}, []string{"outcome"})

	PassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tx_event_processor_pass_duration_seconds",
		Help:    "Time taken by a full ingestion pass over all shards",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	ShardErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tx_event_processor_shard_errors_total",
		Help: "Total errors that caused a shard to be skipped for a pass",
	}, []string{"shard", "operation"})

	EventsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tx_event_processor_events_detected_total",
		Help: "Total events detected by the extractors",
	}, []string{"event"})

	InvalidatedKeys = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tx_event_processor_invalidated_keys_total",
		Help: "Total cache keys invalidated by scope",
	}, []string{"scope"})

	InvalidationBroadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tx_event_processor_invalidation_broadcasts_total",
		Help: "Total invalidation messages published to the fleet",
	}, []string{"status"})

	InvalidationsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tx_event_processor_invalidations_received_total",
		Help: "Total invalidation messages received from the fleet",
	})

	TransactionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tx_event_processor_transaction_errors_total",
		Help: "Total per-transaction handling errors by step",
	}, []string{"step"})

	NftJobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tx_event_processor_nft_jobs_enqueued_total",
		Help: "Total process-NFT jobs submitted to the worker queue",
	}, []string{"reason", "status"})

	NftHandlingAborted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tx_event_processor_nft_handling_aborted_total",
		Help: "Total NFT handlings aborted because corroborating data was missing",
	}, []string{"flow", "reason"})

	GatewayCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tx_event_processor_gateway_call_duration_seconds",
		Help:    "Duration of gateway HTTP calls",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"method", "status"})

	GatewayCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tx_event_processor_gateway_calls_total",
		Help: "Total gateway HTTP calls",
	}, []string{"method", "status"})

	APICallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tx_event_processor_api_call_duration_seconds",
		Help:    "Duration of indexed read API calls",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"method", "status"})

	APICallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tx_event_processor_api_calls_total",
		Help: "Total indexed read API calls",
	}, []string{"method", "status"})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tx_event_processor_queue_depth",
		Help: "Current number of tasks in queue",
	}, []string{"queue"})

	QueueArchivedItems = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tx_event_processor_queue_archived_items",
		Help: "Number of archived items in queue",
	}, []string{"queue"})

	LeaderElectionStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tx_event_processor_leader_election_status",
		Help: "Current leader election status (1 = leader, 0 = follower)",
	}, []string{"node_id"})

	LeaderElectionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tx_event_processor_leader_election_transitions_total",
		Help: "Total number of leader election transitions",
	}, []string{"node_id", "transition"})

	LeaderElectionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tx_event_processor_leader_election_duration_seconds",
		Help:    "Duration of leadership terms",
		Buckets: prometheus.ExponentialBuckets(1, 2, 16),
	}, []string{"node_id"})

	LeaderElectionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tx_event_processor_leader_election_errors_total",
		Help: "Total number of errors during leader election",
	}, []string{"node_id", "operation"})

	ClickHouseOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tx_event_processor_clickhouse_operation_duration_seconds",
		Help:    "Duration of ClickHouse operations",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"operation", "table", "status"})

	ClickHouseOperationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tx_event_processor_clickhouse_operation_total",
		Help: "Total number of ClickHouse operations",
	}, []string{"operation", "table", "status"})

	RowBufferFlushTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tx_event_processor_row_buffer_flush_total",
		Help: "Total row buffer flushes by trigger and status",
	}, []string{"table", "trigger", "status"})

	RowBufferFlushSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tx_event_processor_row_buffer_flush_size_rows",
		Help:    "Rows per row buffer flush",
		Buckets: prometheus.ExponentialBuckets(1, 2, 14),
	}, []string{"table"})

	RowBufferPendingRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tx_event_processor_row_buffer_pending_rows",
		Help: "Rows waiting in the row buffer",
	}, []string{"table"})

	RowBufferDroppedRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tx_event_processor_row_buffer_dropped_rows_total",
		Help: "Rows dropped because the row buffer was full",
	}, []string{"table"})

	MemoryUsage = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tx_event_processor_memory_usage_bytes",
		Help: "Process memory usage by type",
	}, []string{"type"})

	GoroutineCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tx_event_processor_goroutines",
		Help: "Number of running goroutines",
	})

	MemoryPressureEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tx_event_processor_memory_pressure_events_total",
		Help: "Times memory usage crossed a configured threshold",
	}, []string{"level"})
)
