package transcode

import (
	"bytes"
	"context"
	"image"
	"os"

	"media-ingest/internal/capability"
	"media-ingest/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// ImageConfig holds image processing policy. The numbers are tuning
// knobs, not correctness requirements.
type ImageConfig struct {
	// MaxEdge bounds the longer edge of the delivered image in pixels.
	MaxEdge int
	// WebPQuality is the encoder quality for the preferred WebP output.
	WebPQuality int
	// JPEGQuality is the encoder quality for the JPEG fallback.
	JPEGQuality int
}

// DefaultImageConfig returns the product policy defaults.
func DefaultImageConfig() ImageConfig {
	return ImageConfig{
		MaxEdge:     1920,
		WebPQuality: 82,
		JPEGQuality: 85,
	}
}

// ImageTranscoder downsizes and re-encodes still images. It prefers the
// libvips runtime with decode-time shrinking and WebP output, and falls
// back to the in-process raster pipeline with JPEG output when vips is
// unavailable.
type ImageTranscoder struct {
	cfg ImageConfig
}

// NewImageTranscoder creates an image transcoder.
func NewImageTranscoder(cfg ImageConfig) *ImageTranscoder {
	return &ImageTranscoder{cfg: cfg}
}

// Transcode implements Transcoder. A nil result means the input could
// not be decoded in this environment.
func (t *ImageTranscoder) Transcode(ctx context.Context, in RawInput, caps capability.CapabilitySet) (pm *ProcessedMedia, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("image transcode panicked for %s: %v", in.Name, r)
			pm, err = nil, nil
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if caps.VipsAvailable {
		if pm := t.transcodeVips(in); pm != nil {
			return pm, nil
		}
		logging.Debug("vips path failed for %s, trying native decode", in.Name)
	}

	if caps.NativeDecode {
		if pm := t.transcodeNative(in); pm != nil {
			return pm, nil
		}
	}

	return nil, nil
}

// transcodeVips shrinks at decode time and exports WebP.
func (t *ImageTranscoder) transcodeVips(in RawInput) *ProcessedMedia {
	ref, err := vips.LoadImageFromFile(in.Path, vips.NewImportParams())
	if err != nil {
		logging.Debug("vips failed to load %s: %v", in.Name, err)
		return nil
	}
	defer ref.Close()

	w, h := boundEdge(ref.Width(), ref.Height(), t.cfg.MaxEdge)
	if w != ref.Width() || h != ref.Height() {
		if err := ref.Thumbnail(w, h, vips.InterestingNone); err != nil {
			logging.Debug("vips resize failed for %s: %v", in.Name, err)
			return nil
		}
	}

	encoded, _, err := ref.ExportWebp(&vips.WebpExportParams{Quality: t.cfg.WebPQuality})
	if err != nil {
		logging.Debug("vips webp export failed for %s: %v", in.Name, err)
		return nil
	}

	decoded, err := imaging.Decode(bytes.NewReader(encoded))
	if err != nil {
		// The artifact is valid even if the preview decode fails.
		logging.Debug("placeholder decode failed for %s: %v", in.Name, err)
	}

	return t.result(in, encoded, "image/webp", ref.Width(), ref.Height(), decoded)
}

// transcodeNative decodes in process and re-encodes as JPEG, the classic
// lossy fallback when the preferred encoder is unavailable.
func (t *ImageTranscoder) transcodeNative(in RawInput) *ProcessedMedia {
	f, err := os.Open(in.Path)
	if err != nil {
		logging.Debug("failed to open %s: %v", in.Name, err)
		return nil
	}
	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	closeErr := f.Close()
	if err != nil {
		logging.Debug("native decode failed for %s: %v", in.Name, err)
		return nil
	}
	if closeErr != nil {
		logging.Warn("failed to close %s: %v", in.Name, closeErr)
	}

	bounds := img.Bounds()
	w, h := boundEdge(bounds.Dx(), bounds.Dy(), t.cfg.MaxEdge)
	if w != bounds.Dx() || h != bounds.Dy() {
		img = imaging.Fit(img, t.cfg.MaxEdge, t.cfg.MaxEdge, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(t.cfg.JPEGQuality)); err != nil {
		logging.Debug("jpeg encode failed for %s: %v", in.Name, err)
		return nil
	}

	out := img.Bounds()
	return t.result(in, buf.Bytes(), "image/jpeg", out.Dx(), out.Dy(), img)
}

func (t *ImageTranscoder) result(in RawInput, encoded []byte, mime string, w, h int, decoded image.Image) *ProcessedMedia {
	placeholder := SolidPlaceholder(in.Name, in.Size)
	if decoded != nil {
		placeholder = TinyPlaceholder(decoded, in.Name, in.Size)
	}

	return &ProcessedMedia{
		ID:               uuid.NewString(),
		Artifacts:        map[ArtifactKind][]byte{KindImage: encoded},
		ArtifactMIME:     map[ArtifactKind]string{KindImage: mime},
		Width:            w,
		Height:           h,
		DetectedMIME:     mime,
		OriginalBytes:    in.Size,
		ProcessedBytes:   int64(len(encoded)),
		CompressionRatio: CompressionRatio(in.Size, int64(len(encoded))),
		TinyPlaceholder:  placeholder,
	}
}

// boundEdge caps the longer edge at maxEdge, preserving aspect ratio.
// Images already within bounds are left alone; nothing is upscaled.
func boundEdge(w, h, maxEdge int) (int, int) {
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return w, h
	}
	if w >= h {
		nh := h * maxEdge / w
		if nh < 1 {
			nh = 1
		}
		return maxEdge, nh
	}
	nw := w * maxEdge / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxEdge
}
