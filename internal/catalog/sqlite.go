package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-ingest/internal/logging"

	"github.com/google/uuid"
)

// Default timeout for catalog operations
const defaultTimeout = 5 * time.Second

const schema = `
CREATE TABLE IF NOT EXISTS media (
	id TEXT PRIMARY KEY,
	file_name TEXT NOT NULL,
	category TEXT NOT NULL,
	status TEXT NOT NULL,
	status_message TEXT NOT NULL DEFAULT '',
	declared_mime TEXT NOT NULL DEFAULT '',
	detected_mime TEXT NOT NULL DEFAULT '',
	original_path TEXT NOT NULL,
	canonical_path TEXT NOT NULL,
	artifact_paths TEXT NOT NULL DEFAULT '{}',
	placeholder_uri TEXT NOT NULL DEFAULT '',
	original_bytes INTEGER NOT NULL DEFAULT 0,
	processed_bytes INTEGER NOT NULL DEFAULT 0,
	compression_ratio INTEGER NOT NULL DEFAULT 0,
	width INTEGER NOT NULL DEFAULT 0,
	height INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_media_status ON media(status);
`

// SQLiteCatalog stores media rows in a local SQLite database.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLite opens (and if needed creates) the catalog database at dbPath.
// The parent directory must already exist and be writable.
func NewSQLite(ctx context.Context, dbPath string) (*SQLiteCatalog, error) {
	// WAL with a busy timeout prevents "database is locked" errors when
	// the status listener reads while the queue writes.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close catalog after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to catalog database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close catalog after schema failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize catalog schema: %w", err)
	}

	logging.Info("Catalog database initialized at %s", dbPath)
	return &SQLiteCatalog{db: db}, nil
}

// CreateMediaRow implements Catalog.
func (c *SQLiteCatalog) CreateMediaRow(ctx context.Context, fields MediaFields) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO media (id, file_name, category, status, declared_mime,
			original_path, canonical_path, placeholder_uri, original_bytes,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, fields.FileName, fields.Category, StatusPending, fields.DeclaredMIME,
		fields.OriginalPath, fields.OriginalPath, fields.PlaceholderURI,
		fields.OriginalBytes, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create media row: %w", err)
	}
	return id, nil
}

// FinalizeMedia implements Catalog. The canonical-path switch, artifact
// paths and metadata land in a single statement so a reader never sees
// a half-finalized row.
func (c *SQLiteCatalog) FinalizeMedia(ctx context.Context, req FinalizeRequest) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	paths, err := json.Marshal(req.ArtifactPaths)
	if err != nil {
		return fmt.Errorf("failed to encode artifact paths: %w", err)
	}

	res, err := c.db.ExecContext(ctx, `
		UPDATE media
		SET status = ?, status_message = '', canonical_path = ?,
			artifact_paths = ?, detected_mime = ?, width = ?, height = ?,
			duration_ms = ?, processed_bytes = ?, compression_ratio = ?,
			updated_at = ?
		WHERE id = ?`,
		StatusComplete, req.CanonicalPath, string(paths), req.DetectedMIME,
		req.Width, req.Height, req.Duration.Milliseconds(),
		req.ProcessedBytes, req.CompressionRatio, time.Now().UTC(), req.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize media row: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no media row with id %s", req.ID)
	}
	return nil
}

// UpdateStatus implements Catalog.
func (c *SQLiteCatalog) UpdateStatus(ctx context.Context, id, status, message string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := c.db.ExecContext(ctx, `
		UPDATE media SET status = ?, status_message = ?, updated_at = ? WHERE id = ?`,
		status, message, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update media status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no media row with id %s", id)
	}
	return nil
}

// GetMedia implements Catalog.
func (c *SQLiteCatalog) GetMedia(ctx context.Context, id string) (*Record, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rec Record
	var paths string
	var durationMS int64
	err := c.db.QueryRowContext(ctx, `
		SELECT id, file_name, category, status, status_message, declared_mime,
			detected_mime, original_path, canonical_path, artifact_paths,
			original_bytes, processed_bytes, width, height, duration_ms,
			created_at, updated_at
		FROM media WHERE id = ?`, id).Scan(
		&rec.ID, &rec.FileName, &rec.Category, &rec.Status, &rec.StatusMessage,
		&rec.DeclaredMIME, &rec.DetectedMIME, &rec.OriginalPath, &rec.CanonicalPath,
		&paths, &rec.OriginalBytes, &rec.ProcessedBytes, &rec.Width, &rec.Height,
		&durationMS, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load media row %s: %w", id, err)
	}
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	if err := json.Unmarshal([]byte(paths), &rec.ArtifactPaths); err != nil {
		return nil, fmt.Errorf("corrupt artifact paths for %s: %w", id, err)
	}
	return &rec, nil
}

// Close implements Catalog.
func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}
