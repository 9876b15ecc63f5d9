// Package queue owns the per-item upload state machine and the
// sequential batch driver.
//
// Items move queued -> processing -> uploading_original ->
// uploading_processed -> finalizing -> complete, with error reachable
// from any active state and needs_retry reserved for items whose
// processing completed but under-delivered a mandatory artifact.
// Original-only delivery is a first-class success path: an item with no
// artifacts lands its original, points the catalog row at it and
// completes directly.
//
// The driver processes items strictly sequentially to bound memory and
// network pressure from large media. A failed item never blocks the
// rest of the batch, and the batch summary always reports
// completed-versus-attempted counts even under partial failure.
// Uploads are paced from the network advisor's tier and supervised for
// stalls; processed-artifact uploads are all-or-nothing so the catalog
// never references an artifact that was not uploaded.
package queue
