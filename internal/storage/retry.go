package storage

import (
	"context"
	"io"
	"time"

	"media-ingest/internal/faults"
	"media-ingest/internal/logging"
)

// RetryConfig configures retry behavior for storage operations.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns sensible defaults for flaky uplinks.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// RetryingStore wraps a Store with exponential-backoff retries on
// retryable failures. Non-retryable errors pass straight through.
type RetryingStore struct {
	inner Store
	cfg   RetryConfig
}

// NewRetryingStore wraps inner with retry behavior.
func NewRetryingStore(inner Store, cfg RetryConfig) *RetryingStore {
	return &RetryingStore{inner: inner, cfg: cfg}
}

// Upload implements Store. A failed attempt is only retried when the
// reader can be rewound; one-shot readers get a single attempt.
func (s *RetryingStore) Upload(ctx context.Context, path string, r io.Reader, opts UploadOptions) (string, error) {
	seeker, rewindable := r.(io.Seeker)

	var lastErr error
	backoff := s.cfg.InitialBackoff

	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return "", lastErr
			}
			// Retries replace whatever a previously half-acknowledged
			// attempt may have left behind.
			opts.Overwrite = true
		}

		stored, err := s.inner.Upload(ctx, path, r, opts)
		if err == nil {
			if attempt > 0 {
				logging.Info("upload of %s succeeded on retry %d", path, attempt)
			}
			return stored, nil
		}
		lastErr = err

		if ctx.Err() != nil || !faults.IsRetryable(err) || !rewindable {
			return "", err
		}
		if attempt < s.cfg.MaxRetries {
			logging.Debug("upload of %s failed, retrying in %v (attempt %d/%d): %v",
				path, backoff, attempt+1, s.cfg.MaxRetries, err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			backoff *= 2
			if backoff > s.cfg.MaxBackoff {
				backoff = s.cfg.MaxBackoff
			}
		}
	}

	logging.Warn("upload of %s failed after %d retries: %v", path, s.cfg.MaxRetries, lastErr)
	return "", lastErr
}

// Exists implements Store.
func (s *RetryingStore) Exists(ctx context.Context, path string) (bool, error) {
	return s.inner.Exists(ctx, path)
}

// Delete implements Store.
func (s *RetryingStore) Delete(ctx context.Context, path string) error {
	return s.inner.Delete(ctx, path)
}
