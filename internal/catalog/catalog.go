package catalog

import (
	"context"
	"time"
)

// Status values a media row moves through.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusError      = "error"
)

// MediaFields are the values known when a row is first created, before
// any processed artifact exists.
type MediaFields struct {
	FileName       string
	Category       string
	DeclaredMIME   string
	OriginalPath   string
	OriginalBytes  int64
	PlaceholderURI string
}

// FinalizeRequest atomically switches a row's canonical path to the
// processed artifact and records the processing metadata. OriginalPath
// is retained so original bytes can later be garbage-collected.
type FinalizeRequest struct {
	ID            string
	CanonicalPath string
	// ArtifactPaths maps artifact kind to its stored path.
	ArtifactPaths    map[string]string
	DetectedMIME     string
	Width            int
	Height           int
	Duration         time.Duration
	ProcessedBytes   int64
	CompressionRatio int
}

// Record is one catalog row.
type Record struct {
	ID               string
	FileName         string
	Category         string
	Status           string
	StatusMessage    string
	DeclaredMIME     string
	DetectedMIME     string
	OriginalPath     string
	CanonicalPath    string
	ArtifactPaths    map[string]string
	OriginalBytes    int64
	ProcessedBytes   int64
	CompressionRatio int
	Width            int
	Height           int
	Duration         time.Duration
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Catalog is the metadata database boundary.
type Catalog interface {
	// CreateMediaRow inserts a new row in StatusPending with the
	// original upload as its canonical path, returning the row id.
	CreateMediaRow(ctx context.Context, fields MediaFields) (string, error)
	// FinalizeMedia switches the canonical path to the processed
	// artifact and marks the row complete.
	FinalizeMedia(ctx context.Context, req FinalizeRequest) error
	// UpdateStatus patches a row's status and human-readable message.
	UpdateStatus(ctx context.Context, id, status, message string) error
	// GetMedia returns one row.
	GetMedia(ctx context.Context, id string) (*Record, error)
	// Close releases the underlying connection.
	Close() error
}
