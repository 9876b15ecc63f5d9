package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryCatalog is an in-memory Catalog used by tests and by runs that
// do not want a durable local catalog.
type MemoryCatalog struct {
	mu   sync.Mutex
	rows map[string]*Record
}

// NewMemory creates an empty in-memory catalog.
func NewMemory() *MemoryCatalog {
	return &MemoryCatalog{rows: make(map[string]*Record)}
}

// CreateMediaRow implements Catalog.
func (c *MemoryCatalog) CreateMediaRow(ctx context.Context, fields MediaFields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	id := uuid.NewString()
	now := time.Now().UTC()
	c.rows[id] = &Record{
		ID:            id,
		FileName:      fields.FileName,
		Category:      fields.Category,
		Status:        StatusPending,
		DeclaredMIME:  fields.DeclaredMIME,
		OriginalPath:  fields.OriginalPath,
		CanonicalPath: fields.OriginalPath,
		OriginalBytes: fields.OriginalBytes,
		ArtifactPaths: map[string]string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return id, nil
}

// FinalizeMedia implements Catalog.
func (c *MemoryCatalog) FinalizeMedia(ctx context.Context, req FinalizeRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.rows[req.ID]
	if !ok {
		return fmt.Errorf("no media row with id %s", req.ID)
	}
	rec.Status = StatusComplete
	rec.StatusMessage = ""
	rec.CanonicalPath = req.CanonicalPath
	rec.ArtifactPaths = clonePaths(req.ArtifactPaths)
	rec.DetectedMIME = req.DetectedMIME
	rec.Width = req.Width
	rec.Height = req.Height
	rec.Duration = req.Duration
	rec.ProcessedBytes = req.ProcessedBytes
	rec.CompressionRatio = req.CompressionRatio
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateStatus implements Catalog.
func (c *MemoryCatalog) UpdateStatus(ctx context.Context, id, status, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.rows[id]
	if !ok {
		return fmt.Errorf("no media row with id %s", id)
	}
	rec.Status = status
	rec.StatusMessage = message
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

// GetMedia implements Catalog.
func (c *MemoryCatalog) GetMedia(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.rows[id]
	if !ok {
		return nil, fmt.Errorf("no media row with id %s", id)
	}
	// Copy the map too so callers never alias catalog-internal state.
	cp := *rec
	cp.ArtifactPaths = clonePaths(rec.ArtifactPaths)
	return &cp, nil
}

func clonePaths(paths map[string]string) map[string]string {
	out := make(map[string]string, len(paths))
	for k, v := range paths {
		out[k] = v
	}
	return out
}

// Close implements Catalog.
func (c *MemoryCatalog) Close() error { return nil }
