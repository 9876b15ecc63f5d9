package queue

import (
	"media-ingest/internal/transcode"
)

// Status is the state-machine position of one upload item.
type Status string

const (
	StatusQueued             Status = "queued"
	StatusProcessing         Status = "processing"
	StatusUploadingOriginal  Status = "uploading_original"
	StatusUploadingProcessed Status = "uploading_processed"
	StatusFinalizing         Status = "finalizing"
	StatusComplete           Status = "complete"
	StatusError              Status = "error"
	// StatusNeedsRetry marks items whose processing completed but
	// produced no usable artifacts for a mandatory category. The user
	// may retry processing or accept original-only delivery.
	StatusNeedsRetry Status = "needs_retry"
)

// Terminal reports whether no further automatic transitions happen.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusNeedsRetry
}

// Active reports whether the driver currently owns the item.
func (s Status) Active() bool {
	switch s {
	case StatusProcessing, StatusUploadingOriginal, StatusUploadingProcessed, StatusFinalizing:
		return true
	}
	return false
}

// Item is one unit of queue state. It is mutated exclusively by the
// queue driver; callers observe it through snapshots.
type Item struct {
	ID  string
	Raw transcode.RawInput

	Processed *transcode.ProcessedMedia

	Status   Status
	Progress int
	// Error is the human-readable failure message, set with StatusError.
	Error string
	// Retryable reports whether a fresh attempt may succeed.
	Retryable bool

	// Remote identifiers assigned once upload starts.
	OriginalPath  string
	RowID         string
	ArtifactPaths map[string]string
}

// snapshot returns a copy safe to hand outside the queue lock.
func (it *Item) snapshot() Item {
	cp := *it
	if it.ArtifactPaths != nil {
		cp.ArtifactPaths = make(map[string]string, len(it.ArtifactPaths))
		for k, v := range it.ArtifactPaths {
			cp.ArtifactPaths[k] = v
		}
	}
	return cp
}

// Event is one observable item transition, emitted to the caller's
// event callback.
type Event struct {
	ItemID   string
	Status   Status
	Progress int
	Message  string
}

// Summary aggregates one batch run.
type Summary struct {
	Attempted  int
	Completed  int
	Failed     int
	NeedsRetry int
}
