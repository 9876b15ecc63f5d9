package transcode

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"media-ingest/internal/capability"
	"media-ingest/internal/faults"
	"media-ingest/internal/lifecycle"
	"media-ingest/internal/logging"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// HEICConfig holds HEIC conversion policy.
type HEICConfig struct {
	// WorkerTimeout bounds the isolated conversion helper so a slow or
	// unsupported decode cannot block the pipeline.
	WorkerTimeout time.Duration
	// MaxEdge bounds the longer edge of the converted image.
	MaxEdge int
	// JPEGQuality is the encoder quality of the converted output.
	JPEGQuality int
	// StagingPrefix is the storage namespace originals are staged under
	// when conversion is delegated to the server.
	StagingPrefix string
}

// DefaultHEICConfig returns the product policy defaults.
func DefaultHEICConfig() HEICConfig {
	return HEICConfig{
		WorkerTimeout: 2 * time.Second,
		MaxEdge:       1920,
		JPEGQuality:   85,
		StagingPrefix: "incoming/heic",
	}
}

// ConvertRequest is the message sent to a conversion helper: a request
// id and file paths in, a result or typed error out. The helper owns no
// state between requests.
type ConvertRequest struct {
	ID         string
	InputPath  string
	OutputPath string
	MaxEdge    int
}

// ConvertResult is the helper's reply.
type ConvertResult struct {
	ID         string
	OutputPath string
}

// Converter performs an isolated HEIC decode+re-encode.
type Converter interface {
	Convert(ctx context.Context, req ConvertRequest) (ConvertResult, error)
}

// Stager uploads bytes to a staging location. Satisfied by the storage
// collaborator.
type Stager interface {
	Upload(ctx context.Context, path string, r io.Reader, contentType string) (string, error)
}

// JobSpec describes a delegated server-side conversion.
type JobSpec struct {
	Kind       string            `json:"kind"`
	SourcePath string            `json:"source_path"`
	FileName   string            `json:"file_name"`
	Options    map[string]string `json:"options,omitempty"`
}

// Invoker submits a job to the server-side transcode service. Satisfied
// by the remote collaborator.
type Invoker interface {
	Invoke(ctx context.Context, spec JobSpec) (JobHandle, error)
}

// HEICTranscoder runs the HEIC-specific fallback ladder: an isolated
// helper conversion with a short timeout, then delegation to the
// server-side transcode service, then a typed hard failure.
type HEICTranscoder struct {
	cfg     HEICConfig
	worker  Converter
	stager  Stager
	invoker Invoker
	tracker *lifecycle.Tracker
}

// NewHEICTranscoder creates a HEIC transcoder.
func NewHEICTranscoder(cfg HEICConfig, worker Converter, stager Stager, invoker Invoker, tracker *lifecycle.Tracker) *HEICTranscoder {
	return &HEICTranscoder{cfg: cfg, worker: worker, stager: stager, invoker: invoker, tracker: tracker}
}

// Transcode implements Transcoder. Unlike the other transcoders a HEIC
// conversion can end in a typed hard failure: when even staging the
// original for server-side conversion fails there is no deliverable at
// all.
func (t *HEICTranscoder) Transcode(ctx context.Context, in RawInput, caps capability.CapabilitySet) (pm *ProcessedMedia, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("heic transcode panicked for %s: %v", in.Name, r)
			pm, err = nil, faults.New(faults.Unknown, "transcode.heic", fmt.Sprintf("panic: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Tier 1: isolated helper with a short leash.
	if caps.HelperAvailable && t.worker != nil {
		if pm := t.convertLocally(ctx, in); pm != nil {
			return pm, nil
		}
	}

	// Tier 2: stage the original and delegate to the server.
	return t.delegate(ctx, in)
}

func (t *HEICTranscoder) convertLocally(ctx context.Context, in RawInput) *ProcessedMedia {
	h, out, err := t.tracker.AcquireScratchFile("heic-*.jpg")
	if err != nil {
		logging.Debug("heic scratch acquisition failed for %s: %v", in.Name, err)
		return nil
	}
	defer t.tracker.Release(h)

	req := ConvertRequest{
		ID:         uuid.NewString(),
		InputPath:  in.Path,
		OutputPath: out,
		MaxEdge:    t.cfg.MaxEdge,
	}

	res, err := lifecycle.WithTimeout(ctx, t.cfg.WorkerTimeout, "transcode.heic.worker", func(ctx context.Context) (ConvertResult, error) {
		return t.worker.Convert(ctx, req)
	})
	if err != nil {
		logging.Debug("heic worker failed for %s: %v", in.Name, err)
		return nil
	}

	encoded, err := os.ReadFile(res.OutputPath)
	if err != nil || len(encoded) == 0 {
		logging.Debug("heic worker produced no output for %s: %v", in.Name, err)
		return nil
	}

	placeholder := SolidPlaceholder(in.Name, in.Size)
	width, height := 0, 0
	if img, decErr := imaging.Decode(bytes.NewReader(encoded)); decErr == nil {
		placeholder = TinyPlaceholder(img, in.Name, in.Size)
		width, height = img.Bounds().Dx(), img.Bounds().Dy()
	}

	return &ProcessedMedia{
		ID:               uuid.NewString(),
		Artifacts:        map[ArtifactKind][]byte{KindImage: encoded},
		ArtifactMIME:     map[ArtifactKind]string{KindImage: "image/jpeg"},
		Width:            width,
		Height:           height,
		DetectedMIME:     "image/jpeg",
		OriginalBytes:    in.Size,
		ProcessedBytes:   int64(len(encoded)),
		CompressionRatio: CompressionRatio(in.Size, int64(len(encoded))),
		TinyPlaceholder:  placeholder,
	}
}

// delegate stages the original bytes and submits a server-side job,
// returning a job handle rather than final bytes. The error taxonomy
// distinguishes the staging (client-to-storage) failure from the
// invocation (server-side) failure.
func (t *HEICTranscoder) delegate(ctx context.Context, in RawInput) (*ProcessedMedia, error) {
	if t.stager == nil || t.invoker == nil {
		return nil, faults.New(faults.CapabilityUnavailable, "transcode.heic", "no server-side conversion available")
	}

	f, err := os.Open(in.Path)
	if err != nil {
		return nil, faults.Wrap(faults.DecodeFailure, "transcode.heic.stage", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("failed to close %s: %v", in.Name, err)
		}
	}()

	stagePath := fmt.Sprintf("%s/%s-%s", t.cfg.StagingPrefix, uuid.NewString(), in.Name)
	stored, err := t.stager.Upload(ctx, stagePath, f, "image/heic")
	if err != nil {
		return nil, faults.Wrap(faults.NetworkFailure, "transcode.heic.stage", err)
	}

	handle, err := t.invoker.Invoke(ctx, JobSpec{
		Kind:       "heic-convert",
		SourcePath: stored,
		FileName:   in.Name,
		Options:    map[string]string{"max_edge": strconv.Itoa(t.cfg.MaxEdge)},
	})
	if err != nil {
		return nil, faults.Wrap(faults.NetworkFailure, "transcode.heic.invoke", err)
	}

	logging.Info("heic conversion delegated for %s (job %s)", in.Name, handle.ID)

	return &ProcessedMedia{
		ID:              uuid.NewString(),
		Artifacts:       map[ArtifactKind][]byte{},
		ArtifactMIME:    map[ArtifactKind]string{},
		DetectedMIME:    "image/heic",
		OriginalBytes:   in.Size,
		ProcessedBytes:  in.Size,
		TinyPlaceholder: SolidPlaceholder(in.Name, in.Size),
		RemoteJob:       &handle,
	}, nil
}

// SubprocessConverter converts HEIC files in an isolated child process
// so a crashing or hanging decoder cannot take down the session.
type SubprocessConverter struct {
	runner CommandRunner
	binary string
}

// NewSubprocessConverter creates a converter driving the given binary
// (normally ffmpeg built with libheif support).
func NewSubprocessConverter(runner CommandRunner, binary string) *SubprocessConverter {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &SubprocessConverter{runner: runner, binary: binary}
}

// Convert implements Converter.
func (c *SubprocessConverter) Convert(ctx context.Context, req ConvertRequest) (ConvertResult, error) {
	args := []string{"-y", "-i", req.InputPath}
	if req.MaxEdge > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale='min(%d,iw)':-2", req.MaxEdge))
	}
	args = append(args, "-q:v", "2", req.OutputPath)

	if err := c.runner.Run(ctx, c.binary, args...); err != nil {
		return ConvertResult{}, err
	}
	return ConvertResult{ID: req.ID, OutputPath: req.OutputPath}, nil
}
