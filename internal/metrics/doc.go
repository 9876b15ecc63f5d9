// Package metrics provides Prometheus instrumentation for the ingest agent.
//
// All metrics are prefixed with "media_ingest_" to avoid naming collisions
// with other applications. Metrics are registered at package init via
// promauto and exposed on the /metrics endpoint of the status listener.
//
// # Metric Categories
//
// ## Pipeline Metrics
//
// Track per-file processing outcomes and latency:
//   - FilesProcessedTotal: Counter of processed files by category and outcome
//   - ProcessingDuration: Histogram of processing duration by category
//   - TranscodeTierUsed: Counter of which fallback tier produced the artifact
//
// ## Queue Metrics
//
// Monitor the upload queue state machine:
//   - ItemsTotal: Counter of items by terminal status
//   - QueueDepth: Gauge of items currently queued or in flight
//   - UploadBytesTotal: Counter of bytes uploaded by kind (original, artifact)
//   - UploadDuration: Histogram of per-item upload duration
//
// ## Resource Metrics
//
//   - TrackedHandles: Gauge of currently tracked lifecycle handles
//   - RemoteJobsTotal: Counter of delegated server-side jobs by outcome
//
// # Usage Example
//
//	timer := prometheus.NewTimer(metrics.ProcessingDuration.WithLabelValues("image"))
//	defer timer.ObserveDuration()
//	metrics.FilesProcessedTotal.WithLabelValues("image", "ok").Inc()
package metrics
