package transcode

import (
	"bytes"
	"encoding/base64"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"strconv"

	"media-ingest/internal/logging"

	"github.com/disintegration/imaging"
)

// placeholderEdge is the pixel edge of the tiny preview. 8x8 keeps the
// data URI small enough to inline in low-bandwidth listings.
const placeholderEdge = 8

// TinyPlaceholder downsamples a decoded image to an 8x8 preview and
// returns it as a PNG data URI. Falls back to a hash-derived solid color
// if encoding fails, so the result is never empty.
func TinyPlaceholder(img image.Image, name string, size int64) string {
	small := imaging.Resize(img, placeholderEdge, placeholderEdge, imaging.Lanczos)

	var buf bytes.Buffer
	if err := png.Encode(&buf, small); err != nil {
		logging.Warn("placeholder encode failed for %s: %v", name, err)
		return SolidPlaceholder(name, size)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// SolidPlaceholder produces a deterministic solid-color 8x8 preview
// derived from the file name and size, so even undecodable inputs get a
// stable, reproducible placeholder.
func SolidPlaceholder(name string, size int64) string {
	h := fnv.New32a()
	h.Write([]byte(name))
	h.Write([]byte(strconv.FormatInt(size, 10)))
	sum := h.Sum32()

	c := color.NRGBA{
		R: uint8(sum >> 16),
		G: uint8(sum >> 8),
		B: uint8(sum),
		A: 0xFF,
	}

	img := image.NewNRGBA(image.Rect(0, 0, placeholderEdge, placeholderEdge))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}

	var buf bytes.Buffer
	// Encoding an in-memory NRGBA cannot fail, but keep the guard so a
	// placeholder is returned no matter what.
	if err := png.Encode(&buf, img); err != nil {
		return "data:image/png;base64,"
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}
