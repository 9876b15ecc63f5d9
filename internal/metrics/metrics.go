package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics
var (
	FilesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_files_processed_total",
			Help: "Total number of files run through the processing pipeline",
		},
		[]string{"category", "outcome"}, // outcome: "ok", "minimal", "error"
	)

	ProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_ingest_processing_duration_seconds",
			Help:    "Per-file processing duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"category"},
	)

	TranscodeTierUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_transcode_tier_total",
			Help: "Which fallback tier produced the delivered artifact",
		},
		[]string{"category", "tier"}, // tier: "capture", "full", "original", "worker", "remote"
	)

	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_result_cache_total",
			Help: "Processing result cache lookups",
		},
		[]string{"result"}, // "hit", "miss"
	)
)

// Queue metrics
var (
	ItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_items_total",
			Help: "Upload queue items by terminal status",
		},
		[]string{"status"}, // "complete", "error", "needs_retry"
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_queue_depth",
			Help: "Items currently queued or in flight",
		},
	)

	UploadBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_upload_bytes_total",
			Help: "Bytes uploaded to storage",
		},
		[]string{"kind"}, // "original", "artifact"
	)

	UploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_ingest_upload_duration_seconds",
			Help:    "Per-item upload phase duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 300},
		},
	)
)

// Resource metrics
var (
	TrackedHandles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_tracked_handles",
			Help: "Lifecycle handles currently tracked (files, processes, scopes)",
		},
	)

	RemoteJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_remote_jobs_total",
			Help: "Delegated server-side transcode jobs by outcome",
		},
		[]string{"outcome"}, // "succeeded", "failed", "timeout"
	)
)

// Memory backpressure metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_memory_usage_ratio",
			Help: "Heap usage as a fraction of the configured limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_memory_paused",
			Help: "1 while the queue is paused for memory pressure",
		},
	)
)

// Network advisory metrics
var (
	NetworkTier = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_network_tier",
			Help: "Current advisory speed tier (0 = slowest)",
		},
	)

	NetworkThroughputBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_network_throughput_bytes_per_second",
			Help: "Most recent measured upload throughput",
		},
	)

	NetworkRTTSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_network_rtt_seconds",
			Help: "Most recent measured round-trip time",
		},
	)
)
