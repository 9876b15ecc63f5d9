package transcode

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"media-ingest/internal/capability"

	"github.com/disintegration/imaging"
)

func writeJPEG(t *testing.T, w, h int) (string, int64) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.jpg")
	if err := imaging.Save(imaging.New(w, h, color.NRGBA{R: 90, G: 140, B: 200, A: 255}), path, imaging.JPEGQuality(90)); err != nil {
		t.Fatalf("Failed to write test JPEG: %v", err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat test JPEG: %v", err)
	}
	return path, fi.Size()
}

func nativeCaps() capability.CapabilitySet {
	return capability.CapabilitySet{NativeDecode: true}
}

func TestImageNativeBoundsLongerEdge(t *testing.T) {
	path, size := writeJPEG(t, 2400, 1200)
	in := RawInput{Name: "test.jpg", Path: path, Size: size, DeclaredMIME: "image/jpeg", Category: "image"}

	tr := NewImageTranscoder(DefaultImageConfig())
	pm, err := tr.Transcode(context.Background(), in, nativeCaps())
	if err != nil {
		t.Fatalf("Transcode returned error: %v", err)
	}
	if pm == nil {
		t.Fatal("Expected a result for a decodable image")
	}

	if pm.Width != 1920 || pm.Height != 960 {
		t.Errorf("Expected 1920x960 with preserved aspect, got %dx%d", pm.Width, pm.Height)
	}
	art := pm.Artifacts[KindImage]
	if art == nil {
		t.Fatal("Expected an image artifact")
	}
	if pm.ArtifactMIME[KindImage] != "image/jpeg" {
		t.Errorf("Expected image/jpeg from the native path, got %q", pm.ArtifactMIME[KindImage])
	}

	img, err := imaging.Decode(bytes.NewReader(art))
	if err != nil {
		t.Fatalf("Artifact is not decodable: %v", err)
	}
	if img.Bounds().Dx() != 1920 || img.Bounds().Dy() != 960 {
		t.Errorf("Artifact is %dx%d, want 1920x960", img.Bounds().Dx(), img.Bounds().Dy())
	}

	if pm.TinyPlaceholder == "" {
		t.Error("Expected a placeholder")
	}
	if pm.OriginalBytes != size {
		t.Errorf("Expected original size %d, got %d", size, pm.OriginalBytes)
	}
	if pm.ProcessedBytes != int64(len(art)) {
		t.Errorf("Expected processed size %d, got %d", len(art), pm.ProcessedBytes)
	}
}

func TestImageWithinBoundsKeepsDimensions(t *testing.T) {
	path, size := writeJPEG(t, 800, 600)
	in := RawInput{Name: "small.jpg", Path: path, Size: size, Category: "image"}

	tr := NewImageTranscoder(DefaultImageConfig())
	pm, err := tr.Transcode(context.Background(), in, nativeCaps())
	if err != nil || pm == nil {
		t.Fatalf("Transcode failed: pm=%v err=%v", pm, err)
	}
	if pm.Width != 800 || pm.Height != 600 {
		t.Errorf("Expected dimensions untouched at 800x600, got %dx%d", pm.Width, pm.Height)
	}
}

func TestImageUndecodableDegrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.jpg")
	if err := os.WriteFile(path, []byte("definitely not an image"), 0o644); err != nil {
		t.Fatalf("Failed to write garbage file: %v", err)
	}
	in := RawInput{Name: "garbage.jpg", Path: path, Size: 23, Category: "image"}

	tr := NewImageTranscoder(DefaultImageConfig())
	pm, err := tr.Transcode(context.Background(), in, nativeCaps())
	if pm != nil || err != nil {
		t.Errorf("Expected (nil, nil) degradation signal, got (%v, %v)", pm, err)
	}
}

func TestImageNoDecodeCapability(t *testing.T) {
	path, size := writeJPEG(t, 100, 100)
	in := RawInput{Name: "test.jpg", Path: path, Size: size, Category: "image"}

	tr := NewImageTranscoder(DefaultImageConfig())
	pm, err := tr.Transcode(context.Background(), in, capability.CapabilitySet{})
	if pm != nil || err != nil {
		t.Errorf("Expected (nil, nil) without decode capability, got (%v, %v)", pm, err)
	}
}

func TestImageCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := NewImageTranscoder(DefaultImageConfig())
	_, err := tr.Transcode(ctx, RawInput{Name: "x.jpg"}, nativeCaps())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
