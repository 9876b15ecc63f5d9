package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"media-ingest/internal/faults"
	"media-ingest/internal/logging"
)

// LocalStore keeps objects under a root directory. Used for development
// and as the test double of record for the S3 backend.
type LocalStore struct {
	root string
}

// NewLocalStore creates a store rooted at dir, creating it if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &LocalStore{root: dir}, nil
}

func (s *LocalStore) resolve(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path))
}

// Upload implements Store.
func (s *LocalStore) Upload(ctx context.Context, path string, r io.Reader, opts UploadOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dst := s.resolve(path)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", faults.Wrap(faults.Unknown, "storage.upload", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if opts.Overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(dst, flags, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return "", faults.New(faults.Unknown, "storage.upload", fmt.Sprintf("object already exists at %s", path))
		}
		return "", faults.Wrap(faults.Unknown, "storage.upload", err)
	}

	_, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil {
		if rmErr := os.Remove(dst); rmErr != nil {
			logging.Warn("failed to remove partial upload %s: %v", dst, rmErr)
		}
		return "", faults.Wrap(faults.Unknown, "storage.upload", copyErr)
	}
	if closeErr != nil {
		return "", faults.Wrap(faults.Unknown, "storage.upload", closeErr)
	}
	return path, nil
}

// Exists implements Store.
func (s *LocalStore) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(s.resolve(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Delete implements Store.
func (s *LocalStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.resolve(path)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
