package storage

import (
	"context"
	"fmt"
	"io"

	"media-ingest/internal/transcode"
)

// UploadOptions qualifies a single upload.
type UploadOptions struct {
	// ContentType is the MIME type recorded with the object.
	ContentType string
	// Overwrite permits replacing an existing object. Uploads are
	// non-overwriting by default.
	Overwrite bool
}

// Store is the boundary to durable object storage.
type Store interface {
	// Upload writes the reader's bytes to path and returns the stored
	// path.
	Upload(ctx context.Context, path string, r io.Reader, opts UploadOptions) (string, error)
	// Exists reports whether an object is present at path.
	Exists(ctx context.Context, path string) (bool, error)
	// Delete removes an object. Removing a missing object is not an
	// error.
	Delete(ctx context.Context, path string) error
}

// OriginalPath returns the staging path for an item's untouched bytes.
func OriginalPath(itemID, name string) string {
	return fmt.Sprintf("incoming/%s-%s", itemID, name)
}

// ArtifactPath returns the path for one derived artifact, namespaced
// per item so artifact uploads from different items never collide.
func ArtifactPath(itemID string, kind transcode.ArtifactKind, mime string) string {
	return fmt.Sprintf("processed/%s/%s.%s", itemID, kind, kind.Ext(mime))
}
