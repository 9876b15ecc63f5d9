package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	categories := []string{"image", "video", "audio", "document"}

	for _, cat := range categories {
		for _, outcome := range []string{"ok", "minimal", "error"} {
			FilesProcessedTotal.WithLabelValues(cat, outcome)
		}
		ProcessingDuration.WithLabelValues(cat)
	}

	for _, tier := range []string{"capture", "full", "original", "worker", "remote"} {
		TranscodeTierUsed.WithLabelValues("video", tier)
		TranscodeTierUsed.WithLabelValues("image", tier)
	}

	for _, result := range []string{"hit", "miss"} {
		CacheHitsTotal.WithLabelValues(result)
	}

	for _, status := range []string{"complete", "error", "needs_retry"} {
		ItemsTotal.WithLabelValues(status)
	}

	for _, kind := range []string{"original", "artifact"} {
		UploadBytesTotal.WithLabelValues(kind)
	}

	for _, outcome := range []string{"succeeded", "failed", "timeout"} {
		RemoteJobsTotal.WithLabelValues(outcome)
	}
}
