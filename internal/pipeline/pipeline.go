package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"media-ingest/internal/capability"
	"media-ingest/internal/faults"
	"media-ingest/internal/lifecycle"
	"media-ingest/internal/logging"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/metrics"
	"media-ingest/internal/transcode"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Phase identifies a step in a file's processing run.
type Phase string

const (
	PhaseAnalyzing  Phase = "analyzing"
	PhaseEncoding   Phase = "encoding"
	PhaseUploading  Phase = "uploading"
	PhaseFinalizing Phase = "finalizing"
	PhaseComplete   Phase = "complete"
	PhaseError      Phase = "error"
)

// Progress is a transient per-run report. It is overwritten on every
// phase transition and never persisted.
type Progress struct {
	Phase   Phase
	Percent int
	Message string
}

// ProgressFunc receives phase transitions. May be nil.
type ProgressFunc func(Progress)

// Config holds orchestrator policy.
type Config struct {
	// MaxFileBytes is the processing size ceiling. Files above it are
	// rejected with a resource-exhaustion error rather than risking an
	// out-of-memory kill mid-encode.
	MaxFileBytes int64
	// CacheTTL and CacheEntries bound the result cache.
	CacheTTL     time.Duration
	CacheEntries int
}

// DefaultConfig returns the product policy defaults.
func DefaultConfig() Config {
	return Config{
		MaxFileBytes: 500 * 1024 * 1024,
		CacheTTL:     15 * time.Minute,
		CacheEntries: 256,
	}
}

// Transcoders groups the per-category transcoders the orchestrator
// dispatches to. Any entry may be nil, which degrades that category to
// original-only delivery.
type Transcoders struct {
	Image transcode.Transcoder
	Video transcode.Transcoder
	Audio transcode.Transcoder
	HEIC  transcode.Transcoder
}

// Orchestrator runs the per-file phase machine.
type Orchestrator struct {
	cfg     Config
	caps    capability.CapabilitySet
	tcs     Transcoders
	tracker *lifecycle.Tracker
	cache   *transcode.ResultCache
}

// New creates an orchestrator. The capability set is probed once per
// session and passed in so every dispatch decision is a pure function
// of (input, capabilities).
func New(cfg Config, caps capability.CapabilitySet, tcs Transcoders, tracker *lifecycle.Tracker) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		caps:    caps,
		tcs:     tcs,
		tracker: tracker,
		cache:   transcode.NewResultCache(cfg.CacheTTL, cfg.CacheEntries),
	}
}

// Process drives one file through the full phase sequence and returns
// its ProcessedMedia. Failures that only mean "this environment cannot
// transcode the file" degrade to a minimal result; a returned error is
// either a cancellation or a typed hard failure (size ceiling, HEIC
// staging failure).
func (o *Orchestrator) Process(ctx context.Context, in transcode.RawInput, report ProgressFunc) (*transcode.ProcessedMedia, error) {
	return o.process(ctx, in, report, false)
}

// Reprocess is Process with the cache entry for this input dropped
// first. Retries must re-run the work, not be served a stale result.
func (o *Orchestrator) Reprocess(ctx context.Context, in transcode.RawInput, report ProgressFunc) (*transcode.ProcessedMedia, error) {
	return o.process(ctx, in, report, true)
}

func (o *Orchestrator) process(ctx context.Context, in transcode.RawInput, report ProgressFunc, fresh bool) (*transcode.ProcessedMedia, error) {
	timer := prometheus.NewTimer(metrics.ProcessingDuration.WithLabelValues(string(in.Category)))
	defer timer.ObserveDuration()

	scope := o.tracker.NewScope(ctx)
	defer scope.Cancel()

	emit := func(p Phase, pct int, msg string) {
		if report != nil {
			report(Progress{Phase: p, Percent: pct, Message: msg})
		}
	}

	emit(PhaseAnalyzing, 0, fmt.Sprintf("Analyzing %s", in.Name))

	if o.cfg.MaxFileBytes > 0 && in.Size > o.cfg.MaxFileBytes {
		err := faults.New(faults.ResourceExhaustion, "pipeline.analyze",
			fmt.Sprintf("%s is %d bytes, over the %d byte processing ceiling", in.Name, in.Size, o.cfg.MaxFileBytes))
		emit(PhaseError, 0, err.Error())
		metrics.FilesProcessedTotal.WithLabelValues(string(in.Category), "error").Inc()
		return nil, err
	}

	key := o.cacheKey(in)
	if key != "" {
		if fresh {
			o.cache.Invalidate(key)
		} else if pm := o.cache.Get(key); pm != nil {
			metrics.CacheHitsTotal.WithLabelValues("hit").Inc()
			logging.Debug("result cache hit for %s", in.Name)
			emit(PhaseComplete, 100, fmt.Sprintf("%s already processed", in.Name))
			return pm, nil
		}
		metrics.CacheHitsTotal.WithLabelValues("miss").Inc()
	}

	tc, label := o.dispatch(in)
	emit(PhaseEncoding, 25, fmt.Sprintf("Encoding %s (%s)", in.Name, label))

	var pm *transcode.ProcessedMedia
	var err error
	if tc != nil {
		pm, err = tc.Transcode(scope.Ctx, in, o.caps)
		if err != nil {
			emit(PhaseError, 25, err.Error())
			metrics.FilesProcessedTotal.WithLabelValues(string(in.Category), "error").Inc()
			return nil, err
		}
	}

	outcome := "ok"
	if pm == nil {
		// Degraded: deliver the original with a synthetic placeholder.
		pm = o.minimalResult(in)
		outcome = "minimal"
		logging.Info("no transcode available for %s, delivering original only", in.Name)
	}

	if pm.RemoteJob != nil {
		emit(PhaseUploading, 60, fmt.Sprintf("Staged %s for server-side conversion", in.Name))
		metrics.TranscodeTierUsed.WithLabelValues(string(in.Category), "remote").Inc()
	}

	emit(PhaseFinalizing, 90, fmt.Sprintf("Finalizing %s", in.Name))

	// Results carrying a remote job handle are single-use and never
	// cached.
	if key != "" && pm.RemoteJob == nil {
		o.cache.Put(key, pm)
	}

	metrics.FilesProcessedTotal.WithLabelValues(string(in.Category), outcome).Inc()
	emit(PhaseComplete, 100, fmt.Sprintf("Processed %s", in.Name))
	return pm, nil
}

// dispatch selects the transcoder for an input. HEIC wins over the
// generic image category.
func (o *Orchestrator) dispatch(in transcode.RawInput) (transcode.Transcoder, string) {
	if mediatypes.IsHEIC(in.Name, in.DeclaredMIME, in.Header) {
		return o.tcs.HEIC, "heic"
	}
	switch in.Category {
	case mediatypes.CategoryImage:
		return o.tcs.Image, "image"
	case mediatypes.CategoryVideo:
		return o.tcs.Video, "video"
	case mediatypes.CategoryAudio:
		return o.tcs.Audio, "audio"
	default:
		return nil, "passthrough"
	}
}

func (o *Orchestrator) minimalResult(in transcode.RawInput) *transcode.ProcessedMedia {
	return &transcode.ProcessedMedia{
		ID:              uuid.NewString(),
		Artifacts:       map[transcode.ArtifactKind][]byte{},
		ArtifactMIME:    map[transcode.ArtifactKind]string{},
		DetectedMIME:    in.DeclaredMIME,
		OriginalBytes:   in.Size,
		ProcessedBytes:  in.Size,
		TinyPlaceholder: transcode.SolidPlaceholder(in.Name, in.Size),
	}
}

// cacheKey fingerprints the source file. An unreadable file simply
// bypasses the cache.
func (o *Orchestrator) cacheKey(in transcode.RawInput) string {
	fi, err := os.Stat(in.Path)
	if err != nil {
		return ""
	}
	return o.cache.Key(in.Path, fi.Size(), fi.ModTime())
}
