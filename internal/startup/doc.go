// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// This package centralizes all application configuration and provides consistent
// logging throughout the ingest session lifecycle.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig].
// The following environment variables are supported:
//
//   - DATA_DIR: Path to durable state (catalog, local object store) (default: /data)
//   - SCRATCH_DIR: Path to the session scratch area (default: $TMPDIR/media-ingest)
//   - CATALOG_PATH: Catalog database file, ":memory:" for ephemeral (default: DATA_DIR/catalog.db)
//   - S3_BUCKET / S3_REGION: When set, objects upload to S3 instead of DATA_DIR/objects
//   - REMOTE_TRANSCODE_URL: Server-side transcode service; empty disables delegation
//   - REMOTE_TRANSCODE_API_KEY: Bearer token for the transcode service
//   - FFMPEG_PATH: FFmpeg binary (default: ffmpeg)
//   - METRICS_PORT: Prometheus metrics listener port (default: 9090)
//   - METRICS_ENABLED: Enable or disable the metrics listener (default: true)
//   - MAX_FILE_BYTES: Per-file processing ceiling (default: 500 MiB)
//   - UPLOAD_IDLE_TIMEOUT: Stall window for uploads as Go duration (default: 60s)
//   - EVICT_DELAY: How long completed items stay visible (default: 3s)
//   - MANDATORY_ARTIFACTS: Comma-separated categories that must produce an artifact
//   - MAX_IMAGE_EDGE: Longer-edge bound for delivered images in pixels (default: 1920)
//   - CAPTURE_MAX_EDGE: Longer-edge bound for the video capture tier (default: 1280)
//   - CAPTURE_FPS: Reduced frame rate for the video capture tier (default: 15)
//   - HEIC_WORKER_TIMEOUT: Leash on the isolated HEIC helper as Go duration (default: 2s)
//   - THUMBNAIL_TIMEOUT: Bound on video frame extraction (default: 10s)
//   - REMOTE_POLL_INTERVAL: Server-side job poll interval (default: 2s)
//   - NET_PROBE_HOST: ICMP probe target for the network advisor (default: 1.1.1.1)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - MEMORY_LIMIT: Container memory limit for automatic GOMEMLIMIT configuration
//   - MEMORY_RATIO: Fraction of MEMORY_LIMIT for the Go heap (default: 0.80)
//   - GOMEMLIMIT: Direct override for Go's memory limit
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// # Lifecycle Logging
//
// The package provides structured logging functions for consistent output:
//   - [LogCatalogInit]: Catalog initialization timing
//   - [LogCapabilityProbe]: Capability probe results and FFmpeg availability
//   - [LogStorageInit]: Selected storage backend
//   - [LogHTTPRoutes]: Observability listener routes (debug level)
//   - [LogBatchStarted] / [LogBatchComplete]: Batch boundaries and summary
//   - [LogShutdownInitiated] / [LogShutdownComplete]: Graceful teardown
//   - [LogMemoryConfig]: Memory limit configuration
package startup
