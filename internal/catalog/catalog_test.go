package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// catalogs under test; SQLite runs against a temp file.
func testCatalogs(t *testing.T) map[string]Catalog {
	t.Helper()

	sqlite, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Failed to open SQLite catalog: %v", err)
	}
	t.Cleanup(func() {
		if err := sqlite.Close(); err != nil {
			t.Errorf("Failed to close catalog: %v", err)
		}
	})

	return map[string]Catalog{
		"SQLite": sqlite,
		"Memory": NewMemory(),
	}
}

func sampleFields() MediaFields {
	return MediaFields{
		FileName:      "photo.jpg",
		Category:      "image",
		DeclaredMIME:  "image/jpeg",
		OriginalPath:  "incoming/item-1-photo.jpg",
		OriginalBytes: 5_000_000,
	}
}

func TestCreateMediaRow(t *testing.T) {
	for name, c := range testCatalogs(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id, err := c.CreateMediaRow(ctx, sampleFields())
			if err != nil {
				t.Fatalf("CreateMediaRow failed: %v", err)
			}
			if id == "" {
				t.Fatal("Expected a generated id")
			}

			rec, err := c.GetMedia(ctx, id)
			if err != nil {
				t.Fatalf("GetMedia failed: %v", err)
			}
			if rec.Status != StatusPending {
				t.Errorf("Expected pending status, got %q", rec.Status)
			}
			if rec.CanonicalPath != "incoming/item-1-photo.jpg" {
				t.Errorf("New rows must point at the original upload, got %q", rec.CanonicalPath)
			}
		})
	}
}

func TestFinalizeMedia(t *testing.T) {
	for name, c := range testCatalogs(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id, err := c.CreateMediaRow(ctx, sampleFields())
			if err != nil {
				t.Fatalf("CreateMediaRow failed: %v", err)
			}

			err = c.FinalizeMedia(ctx, FinalizeRequest{
				ID:            id,
				CanonicalPath: "processed/item-1/image.webp",
				ArtifactPaths: map[string]string{
					"image": "processed/item-1/image.webp",
				},
				DetectedMIME:     "image/webp",
				Width:            1920,
				Height:           960,
				Duration:         0,
				ProcessedBytes:   1_200_000,
				CompressionRatio: 76,
			})
			if err != nil {
				t.Fatalf("FinalizeMedia failed: %v", err)
			}

			rec, err := c.GetMedia(ctx, id)
			if err != nil {
				t.Fatalf("GetMedia failed: %v", err)
			}
			if rec.Status != StatusComplete {
				t.Errorf("Expected complete status, got %q", rec.Status)
			}
			if rec.CanonicalPath != "processed/item-1/image.webp" {
				t.Errorf("Canonical path not switched, got %q", rec.CanonicalPath)
			}
			if rec.ArtifactPaths["image"] != "processed/item-1/image.webp" {
				t.Errorf("Artifact paths not recorded: %v", rec.ArtifactPaths)
			}
			if rec.CompressionRatio != 76 {
				t.Errorf("Compression ratio not recorded: %d", rec.CompressionRatio)
			}
			// Original path is retained for later cleanup.
			if rec.OriginalPath != "incoming/item-1-photo.jpg" {
				t.Errorf("Original path lost: %q", rec.OriginalPath)
			}
		})
	}
}

func TestGetMediaCopiesArtifactPaths(t *testing.T) {
	for name, c := range testCatalogs(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id, err := c.CreateMediaRow(ctx, sampleFields())
			if err != nil {
				t.Fatalf("CreateMediaRow failed: %v", err)
			}

			req := FinalizeRequest{
				ID:            id,
				CanonicalPath: "processed/item-1/image.webp",
				ArtifactPaths: map[string]string{"image": "processed/item-1/image.webp"},
			}
			if err := c.FinalizeMedia(ctx, req); err != nil {
				t.Fatalf("FinalizeMedia failed: %v", err)
			}
			// Mutating the request map after the call must not reach the
			// stored row.
			req.ArtifactPaths["image"] = "tampered"

			rec, err := c.GetMedia(ctx, id)
			if err != nil {
				t.Fatalf("GetMedia failed: %v", err)
			}
			if rec.ArtifactPaths["image"] != "processed/item-1/image.webp" {
				t.Errorf("Stored row aliases the request map: %v", rec.ArtifactPaths)
			}

			// Same in the other direction for the returned record.
			rec.ArtifactPaths["image"] = "tampered"
			again, err := c.GetMedia(ctx, id)
			if err != nil {
				t.Fatalf("GetMedia failed: %v", err)
			}
			if again.ArtifactPaths["image"] != "processed/item-1/image.webp" {
				t.Errorf("Returned record aliases catalog state: %v", again.ArtifactPaths)
			}
		})
	}
}

func TestFinalizeUnknownRow(t *testing.T) {
	for name, c := range testCatalogs(t) {
		t.Run(name, func(t *testing.T) {
			err := c.FinalizeMedia(context.Background(), FinalizeRequest{ID: "missing"})
			if err == nil {
				t.Error("Expected error finalizing an unknown row")
			}
		})
	}
}

func TestUpdateStatus(t *testing.T) {
	for name, c := range testCatalogs(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id, err := c.CreateMediaRow(ctx, sampleFields())
			if err != nil {
				t.Fatalf("CreateMediaRow failed: %v", err)
			}

			if err := c.UpdateStatus(ctx, id, StatusError, "upload failed"); err != nil {
				t.Fatalf("UpdateStatus failed: %v", err)
			}
			rec, err := c.GetMedia(ctx, id)
			if err != nil {
				t.Fatalf("GetMedia failed: %v", err)
			}
			if rec.Status != StatusError || rec.StatusMessage != "upload failed" {
				t.Errorf("Status patch not applied: %q / %q", rec.Status, rec.StatusMessage)
			}

			if err := c.UpdateStatus(ctx, "missing", StatusError, ""); err == nil {
				t.Error("Expected error for unknown row")
			}
		})
	}
}

func TestDurationRoundTrip(t *testing.T) {
	for name, c := range testCatalogs(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id, err := c.CreateMediaRow(ctx, sampleFields())
			if err != nil {
				t.Fatalf("CreateMediaRow failed: %v", err)
			}
			want := 20500 * time.Millisecond
			if err := c.FinalizeMedia(ctx, FinalizeRequest{ID: id, Duration: want, ArtifactPaths: map[string]string{}}); err != nil {
				t.Fatalf("FinalizeMedia failed: %v", err)
			}
			rec, err := c.GetMedia(ctx, id)
			if err != nil {
				t.Fatalf("GetMedia failed: %v", err)
			}
			if rec.Duration != want {
				t.Errorf("Expected duration %v, got %v", want, rec.Duration)
			}
		})
	}
}
