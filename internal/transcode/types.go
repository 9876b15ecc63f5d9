package transcode

import (
	"context"
	"time"

	"media-ingest/internal/capability"
	"media-ingest/internal/mediatypes"
)

// RawInput is an immutable handle to user-selected bytes. It is created
// at enqueue time and owned by the upload item that references it.
type RawInput struct {
	// Name is the user-visible file name.
	Name string
	// Path is the on-disk location of the bytes.
	Path string
	// Size is the byte length.
	Size int64
	// DeclaredMIME is the MIME type the client declared; often wrong or
	// missing, especially for HEIC.
	DeclaredMIME string
	// Header holds the leading bytes for magic sniffing; may be nil.
	Header []byte
	// Category is the inferred content category.
	Category mediatypes.Category
}

// ArtifactKind names one derived binary output of transcoding.
type ArtifactKind string

const (
	// KindImage is the compressed still image artifact.
	KindImage ArtifactKind = "image"
	// KindVideo is the re-encoded video artifact.
	KindVideo ArtifactKind = "video"
	// KindThumbnail is the still frame extracted from a video.
	KindThumbnail ArtifactKind = "thumbnail"
	// KindAudio is the audio artifact.
	KindAudio ArtifactKind = "audio"
)

// Ext returns the file extension used when storing an artifact of this
// kind with the given MIME type.
func (k ArtifactKind) Ext(mime string) string {
	switch mime {
	case "image/webp":
		return "webp"
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "video/webm":
		return "webm"
	case "video/mp4":
		return "mp4"
	}
	switch k {
	case KindThumbnail, KindImage:
		return "jpg"
	case KindVideo:
		return "mp4"
	}
	return "bin"
}

// JobHandle references a server-side transcode job that has been
// delegated but not yet finished. The caller polls the remote service
// for completion.
type JobHandle struct {
	ID string
}

// ProcessedMedia is the output of processing one RawInput. It is created
// once and never mutated afterwards; a retry produces a fresh value.
type ProcessedMedia struct {
	// ID is the generated identifier for this processing run.
	ID string
	// Artifacts maps artifact kind to in-memory bytes. May be empty when
	// no client-side transcode succeeded.
	Artifacts map[ArtifactKind][]byte
	// ArtifactMIME records the MIME type of each artifact present.
	ArtifactMIME map[ArtifactKind]string
	// Width and Height are the pixel dimensions of the dominant artifact
	// (or the source, when known).
	Width  int
	Height int
	// Duration is the temporal length for video/audio inputs.
	Duration time.Duration
	// DetectedMIME is the MIME type of the dominant artifact.
	DetectedMIME string
	// OriginalBytes and ProcessedBytes are the size before and after.
	OriginalBytes  int64
	ProcessedBytes int64
	// CompressionRatio is round((original-processed)/original*100).
	CompressionRatio int
	// TinyPlaceholder is a small base64 data URI preview. Always present.
	TinyPlaceholder string
	// RemoteJob is set when conversion was delegated to the server-side
	// transcode service and is still pending.
	RemoteJob *JobHandle
}

// HasArtifacts reports whether any client-side artifact was produced.
func (p *ProcessedMedia) HasArtifacts() bool {
	return len(p.Artifacts) > 0
}

// Transcoder converts one raw input into processed media. A nil result
// with a nil error means this environment cannot transcode the input;
// the caller degrades to an original-only deliverable. Implementations
// must not panic across this boundary.
type Transcoder interface {
	Transcode(ctx context.Context, in RawInput, caps capability.CapabilitySet) (*ProcessedMedia, error)
}

// CompressionRatio computes the percentage saved by processing, rounded
// to the nearest integer. A processed size larger than the original
// yields a negative ratio.
func CompressionRatio(original, processed int64) int {
	if original <= 0 {
		return 0
	}
	ratio := float64(original-processed) / float64(original) * 100
	if ratio >= 0 {
		return int(ratio + 0.5)
	}
	return int(ratio - 0.5)
}
