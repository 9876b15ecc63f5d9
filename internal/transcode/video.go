package transcode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"strconv"
	"time"

	"media-ingest/internal/capability"
	"media-ingest/internal/lifecycle"
	"media-ingest/internal/logging"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// VideoConfig holds video processing policy.
type VideoConfig struct {
	FFmpegPath  string
	FFprobePath string

	// MaxEdge bounds the longer edge of the re-encoded video.
	MaxEdge int
	// CaptureFPS is the reduced frame rate for the capture tier.
	CaptureFPS int
	// BitrateFraction scales the adaptive bitrate derived from the
	// source size and duration.
	BitrateFraction float64
	// MaxCaptureDuration bounds total capture so a runaway recording
	// cannot grow without limit.
	MaxCaptureDuration time.Duration
	// Preset and CRF select the quality tier for the full re-encode.
	Preset string
	CRF    int

	// ThumbnailMaxEdge bounds the extracted still frame.
	ThumbnailMaxEdge int
	// ThumbnailTimeout bounds frame extraction so a corrupt or very long
	// video cannot stall the pipeline.
	ThumbnailTimeout time.Duration
	// ProbeTimeout bounds metadata probing.
	ProbeTimeout time.Duration
}

// DefaultVideoConfig returns the product policy defaults.
func DefaultVideoConfig() VideoConfig {
	return VideoConfig{
		FFmpegPath:         "ffmpeg",
		FFprobePath:        "ffprobe",
		MaxEdge:            1280,
		CaptureFPS:         15,
		BitrateFraction:    0.5,
		MaxCaptureDuration: 10 * time.Minute,
		Preset:             "fast",
		CRF:                23,
		ThumbnailMaxEdge:   320,
		ThumbnailTimeout:   10 * time.Second,
		ProbeTimeout:       10 * time.Second,
	}
}

// VideoInfo holds probed source metadata. Zero values mean the probe
// failed; the ladder still runs with conservative defaults.
type VideoInfo struct {
	Duration time.Duration
	Width    int
	Height   int
	Codec    string
}

// VideoTranscoder re-encodes video through a strict two-tier fallback
// ladder and always attempts a thumbnail. When both tiers fail or are
// unsupported the original file remains the deliverable; that is a
// success, not an error.
type VideoTranscoder struct {
	cfg     VideoConfig
	runner  CommandRunner
	tracker *lifecycle.Tracker
}

// NewVideoTranscoder creates a video transcoder.
func NewVideoTranscoder(cfg VideoConfig, runner CommandRunner, tracker *lifecycle.Tracker) *VideoTranscoder {
	return &VideoTranscoder{cfg: cfg, runner: runner, tracker: tracker}
}

// captureTiers is the encoder preference order for the capture tier,
// most preferred first.
var captureTiers = []struct {
	codec     string
	audio     string
	container string
	mime      string
}{
	{"libvpx-vp9", "libopus", "webm", "video/webm"},
	{"libvpx", "libopus", "webm", "video/webm"},
	{"libx264", "aac", "mp4", "video/mp4"},
}

// Transcode implements Transcoder.
func (t *VideoTranscoder) Transcode(ctx context.Context, in RawInput, caps capability.CapabilitySet) (pm *ProcessedMedia, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("video transcode panicked for %s: %v", in.Name, r)
			pm, err = nil, nil
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info := t.probe(ctx, in)

	var videoArt []byte
	var videoMIME string

	// Tier 1: capture re-encode with the most-preferred supported codec.
	if codec, audio, container, mime := t.pickCaptureCodec(caps); codec != "" {
		art, tierErr := t.captureReencode(ctx, in, info, codec, audio, container)
		if tierErr != nil {
			logging.Debug("capture re-encode failed for %s: %v", in.Name, tierErr)
		} else {
			videoArt, videoMIME = art, mime
		}
	}

	// Tier 2: full re-encode at the configured quality tier. Only
	// reached when tier 1 failed or was unsupported.
	if videoArt == nil && caps.HelperAvailable && caps.HasCodec("libx264") {
		art, tierErr := t.fullReencode(ctx, in, info)
		if tierErr != nil {
			logging.Debug("full re-encode failed for %s: %v", in.Name, tierErr)
		} else {
			videoArt, videoMIME = art, "video/mp4"
		}
	}

	// Tier 3 is the original file itself; nothing to do here.

	// A thumbnail is attempted regardless of which tier succeeded.
	thumb, thumbImg := t.thumbnail(ctx, in, info)

	artifacts := map[ArtifactKind][]byte{}
	artifactMIME := map[ArtifactKind]string{}
	if videoArt != nil {
		artifacts[KindVideo] = videoArt
		artifactMIME[KindVideo] = videoMIME
	}
	if thumb != nil {
		artifacts[KindThumbnail] = thumb
		artifactMIME[KindThumbnail] = "image/jpeg"
	}

	placeholder := SolidPlaceholder(in.Name, in.Size)
	if thumbImg != nil {
		placeholder = TinyPlaceholder(thumbImg, in.Name, in.Size)
	}

	processed := in.Size
	detected := in.DeclaredMIME
	if videoArt != nil {
		processed = int64(len(videoArt))
		detected = videoMIME
	}

	w, h := info.Width, info.Height
	if videoArt != nil {
		w, h = boundEdge(info.Width, info.Height, t.cfg.MaxEdge)
	}

	return &ProcessedMedia{
		ID:               uuid.NewString(),
		Artifacts:        artifacts,
		ArtifactMIME:     artifactMIME,
		Width:            w,
		Height:           h,
		Duration:         info.Duration,
		DetectedMIME:     detected,
		OriginalBytes:    in.Size,
		ProcessedBytes:   processed,
		CompressionRatio: CompressionRatio(in.Size, processed),
		TinyPlaceholder:  placeholder,
	}, nil
}

func (t *VideoTranscoder) pickCaptureCodec(caps capability.CapabilitySet) (codec, audio, container, mime string) {
	for _, tier := range captureTiers {
		if caps.HasCodec(tier.codec) {
			audio := tier.audio
			if !caps.HasCodec(audio) {
				audio = ""
			}
			return tier.codec, audio, tier.container, tier.mime
		}
	}
	return "", "", "", ""
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

type ffprobeStream struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

// probe extracts duration, dimensions and codec. Failures are
// non-fatal; the zero VideoInfo lets the ladder run blind.
func (t *VideoTranscoder) probe(ctx context.Context, in RawInput) VideoInfo {
	info, err := lifecycle.WithTimeout(ctx, t.cfg.ProbeTimeout, "transcode.probe", func(ctx context.Context) (VideoInfo, error) {
		out, err := t.runner.Output(ctx, t.cfg.FFprobePath,
			"-v", "quiet",
			"-print_format", "json",
			"-show_format",
			"-show_streams",
			in.Path,
		)
		if err != nil {
			return VideoInfo{}, err
		}
		return parseProbeOutput(out)
	})
	if err != nil {
		logging.Debug("probe failed for %s: %v", in.Name, err)
		return VideoInfo{}
	}
	return info
}

func parseProbeOutput(out []byte) (VideoInfo, error) {
	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return VideoInfo{}, fmt.Errorf("unparseable ffprobe output: %w", err)
	}

	var info VideoInfo
	if secs, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
		info.Duration = time.Duration(secs * float64(time.Second))
	}
	for _, s := range parsed.Streams {
		if s.CodecType == "video" {
			info.Width = s.Width
			info.Height = s.Height
			info.Codec = s.CodecName
			break
		}
	}
	return info, nil
}

func (t *VideoTranscoder) captureReencode(ctx context.Context, in RawInput, info VideoInfo, codec, audio, container string) ([]byte, error) {
	h, out, err := t.tracker.AcquireScratchFile("capture-*." + container)
	if err != nil {
		return nil, err
	}
	defer t.tracker.Release(h)

	args := []string{"-y", "-i", in.Path,
		"-vf", t.scaleFilter(info),
		"-r", strconv.Itoa(t.cfg.CaptureFPS),
		"-c:v", codec,
		"-b:v", strconv.FormatInt(t.adaptiveBitrate(in, info), 10),
	}
	if audio != "" {
		args = append(args, "-c:a", audio)
	} else {
		args = append(args, "-an")
	}
	if t.cfg.MaxCaptureDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.0f", t.cfg.MaxCaptureDuration.Seconds()))
	}
	if container == "mp4" {
		args = append(args, "-movflags", "+faststart")
	}
	args = append(args, out)

	if err := t.runner.Run(ctx, t.cfg.FFmpegPath, args...); err != nil {
		return nil, err
	}
	return os.ReadFile(out)
}

func (t *VideoTranscoder) fullReencode(ctx context.Context, in RawInput, info VideoInfo) ([]byte, error) {
	h, out, err := t.tracker.AcquireScratchFile("encode-*.mp4")
	if err != nil {
		return nil, err
	}
	defer t.tracker.Release(h)

	args := []string{"-y", "-i", in.Path,
		"-vf", t.scaleFilter(info),
		"-c:v", "libx264",
		"-preset", t.cfg.Preset,
		"-crf", strconv.Itoa(t.cfg.CRF),
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		out,
	}

	if err := t.runner.Run(ctx, t.cfg.FFmpegPath, args...); err != nil {
		return nil, err
	}
	return os.ReadFile(out)
}

// scaleFilter bounds the longer edge without upscaling. When probing
// failed the filter is expressed in terms of the input dimensions so
// ffmpeg computes the bound itself.
func (t *VideoTranscoder) scaleFilter(info VideoInfo) string {
	max := t.cfg.MaxEdge
	if info.Width > 0 && info.Height > 0 {
		w, h := boundEdge(info.Width, info.Height, max)
		// Even dimensions are required by most encoders.
		return fmt.Sprintf("scale=%d:%d", w&^1, h&^1)
	}
	return fmt.Sprintf("scale='min(%d,iw)':-2", max)
}

// adaptiveBitrate derives a target bitrate from the source size so the
// re-encode cannot balloon past a fraction of the original, clamped to a
// sane range.
func (t *VideoTranscoder) adaptiveBitrate(in RawInput, info VideoInfo) int64 {
	const (
		minRate = 250_000
		maxRate = 4_000_000
	)
	secs := info.Duration.Seconds()
	if secs <= 0 {
		return 1_000_000
	}
	rate := int64(float64(in.Size*8) * t.cfg.BitrateFraction / secs)
	if rate < minRate {
		return minRate
	}
	if rate > maxRate {
		return maxRate
	}
	return rate
}

// thumbnail extracts one frame at min(10% of duration, 1s), bounded by a
// short timeout. Failure is non-fatal and simply omits the artifact.
func (t *VideoTranscoder) thumbnail(ctx context.Context, in RawInput, info VideoInfo) ([]byte, image.Image) {
	seek := 1.0
	if secs := info.Duration.Seconds(); secs > 0 && secs*0.1 < seek {
		seek = secs * 0.1
	}

	frame, err := lifecycle.WithTimeout(ctx, t.cfg.ThumbnailTimeout, "transcode.thumbnail", func(ctx context.Context) ([]byte, error) {
		return t.runner.Output(ctx, t.cfg.FFmpegPath,
			"-ss", fmt.Sprintf("%.2f", seek),
			"-i", in.Path,
			"-vframes", "1",
			"-f", "image2pipe",
			"-vcodec", "png",
			"-",
		)
	})
	if err != nil {
		logging.Debug("thumbnail extraction failed for %s: %v", in.Name, err)
		return nil, nil
	}
	if len(frame) == 0 {
		return nil, nil
	}

	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		logging.Debug("thumbnail frame decode failed for %s: %v", in.Name, err)
		return nil, nil
	}

	thumb := imaging.Fit(img, t.cfg.ThumbnailMaxEdge, t.cfg.ThumbnailMaxEdge, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		logging.Debug("thumbnail encode failed for %s: %v", in.Name, err)
		return nil, nil
	}
	return buf.Bytes(), thumb
}
