package queue

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"media-ingest/internal/catalog"
	"media-ingest/internal/faults"
	"media-ingest/internal/lifecycle"
	"media-ingest/internal/logging"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/memory"
	"media-ingest/internal/metrics"
	"media-ingest/internal/netadvisor"
	"media-ingest/internal/pipeline"
	"media-ingest/internal/progress"
	"media-ingest/internal/remote"
	"media-ingest/internal/storage"
	"media-ingest/internal/transcode"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Processor is the orchestrator seam.
type Processor interface {
	Process(ctx context.Context, in transcode.RawInput, report pipeline.ProgressFunc) (*transcode.ProcessedMedia, error)
	Reprocess(ctx context.Context, in transcode.RawInput, report pipeline.ProgressFunc) (*transcode.ProcessedMedia, error)
}

// JobPoller observes delegated server-side jobs.
type JobPoller interface {
	PollJob(ctx context.Context, jobID string) (remote.JobStatus, error)
}

// Config holds queue policy.
type Config struct {
	// MandatoryArtifacts lists categories for which an empty artifact
	// mapping means needs_retry instead of original-only delivery.
	MandatoryArtifacts map[mediatypes.Category]bool
	// EvictDelay is how long completed items stay visible.
	EvictDelay time.Duration
	// UploadIdleTimeout bounds the gap between moved bytes during an
	// upload.
	UploadIdleTimeout time.Duration
	// FinalizeTimeout bounds the finalize call, which is allowed to
	// outlive a batch cancellation.
	FinalizeTimeout time.Duration
	// PaceBytesPerSecond caps upload throughput per advisory tier;
	// zero or a missing tier means unpaced.
	PaceBytesPerSecond map[netadvisor.Tier]float64
	// HeaderBytes is how much of each file is read for magic sniffing.
	HeaderBytes int
}

// DefaultConfig returns the product policy defaults.
func DefaultConfig() Config {
	return Config{
		EvictDelay:        3 * time.Second,
		UploadIdleTimeout: 60 * time.Second,
		FinalizeTimeout:   10 * time.Second,
		PaceBytesPerSecond: map[netadvisor.Tier]float64{
			netadvisor.TierSlow: 512 * 1024,
		},
		HeaderBytes: 512,
	}
}

// Deps are the queue's collaborators. Poller, Advisor and Memory are
// optional; the queue functions correctly, if more slowly, without
// them.
type Deps struct {
	Processor Processor
	Store     storage.Store
	Catalog   catalog.Catalog
	Poller    JobPoller
	Advisor   *netadvisor.Advisor
	Memory    *memory.Monitor
	Tracker   *lifecycle.Tracker
	OnEvent   func(Event)
}

// Queue is the upload queue. One driver run is active at a time; item
// state is observable concurrently through snapshots.
type Queue struct {
	cfg  Config
	deps Deps

	mu    sync.Mutex
	items []*Item
}

// New creates a queue.
func New(cfg Config, deps Deps) *Queue {
	return &Queue{cfg: cfg, deps: deps}
}

// AddFiles enqueues files by path and returns their item ids, in
// order. Unreadable files are rejected up front rather than failing
// later in the driver.
func (q *Queue) AddFiles(paths ...string) ([]string, error) {
	ids := make([]string, 0, len(paths))
	for _, path := range paths {
		fi, err := os.Stat(path)
		if err != nil {
			return ids, fmt.Errorf("cannot enqueue %s: %w", path, err)
		}
		if fi.IsDir() {
			return ids, fmt.Errorf("cannot enqueue directory %s", path)
		}

		name := filepath.Base(path)
		header := q.readHeader(path)
		raw := transcode.RawInput{
			Name:         name,
			Path:         path,
			Size:         fi.Size(),
			DeclaredMIME: mediatypes.GetMimeType(name),
			Header:       header,
			Category:     mediatypes.Categorize(name, ""),
		}

		it := &Item{
			ID:            uuid.NewString(),
			Raw:           raw,
			Status:        StatusQueued,
			ArtifactPaths: map[string]string{},
		}

		q.mu.Lock()
		q.items = append(q.items, it)
		q.mu.Unlock()
		ids = append(ids, it.ID)

		logging.Debug("enqueued %s (%s, %d bytes) as %s", name, raw.Category, raw.Size, it.ID)
	}
	q.updateDepth()
	return ids, nil
}

func (q *Queue) readHeader(path string) []byte {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("failed to close %s: %v", path, err)
		}
	}()

	n := q.cfg.HeaderBytes
	if n <= 0 {
		n = 512
	}
	buf := make([]byte, n)
	read, _ := io.ReadFull(f, buf)
	return buf[:read]
}

// Items returns snapshots of all visible items in enqueue order.
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Item, 0, len(q.items))
	for _, it := range q.items {
		out = append(out, it.snapshot())
	}
	return out
}

// Get returns a snapshot of one item.
func (q *Queue) Get(id string) (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.items {
		if it.ID == id {
			return it.snapshot(), true
		}
	}
	return Item{}, false
}

// Remove drops an item from the visible queue. Active items cannot be
// removed.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, it := range q.items {
		if it.ID == id {
			if it.Status.Active() {
				return false
			}
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// Run drives the batch: items are attempted strictly sequentially in
// enqueue order. Eligible items are those in queued or error state.
// Cancelling ctx stops after the in-flight item; untouched items stay
// queued and are safe to resume.
func (q *Queue) Run(ctx context.Context) Summary {
	var summary Summary

	// Snapshot eligibility up front so an item that fails during this
	// run is not immediately re-attempted by the same run.
	for _, it := range q.eligible() {
		if ctx.Err() != nil {
			break
		}
		if q.deps.Memory != nil && !q.deps.Memory.WaitIfPaused() {
			break
		}

		summary.Attempted++
		q.attempt(ctx, it)

		switch status := q.statusOf(it); status {
		case StatusComplete:
			summary.Completed++
		case StatusNeedsRetry:
			summary.NeedsRetry++
		default:
			summary.Failed++
		}
	}

	logging.Info("batch drained: %d/%d completed, %d failed, %d need retry",
		summary.Completed, summary.Attempted, summary.Failed, summary.NeedsRetry)
	return summary
}

// Retry re-runs processing for a needs_retry item. On success the item
// returns to queued so the next batch run uploads it; on failure it
// stays needs_retry, never silently dropped.
func (q *Queue) Retry(ctx context.Context, id string) error {
	q.mu.Lock()
	var it *Item
	for _, cand := range q.items {
		if cand.ID == id {
			it = cand
			break
		}
	}
	if it == nil {
		q.mu.Unlock()
		return fmt.Errorf("no item with id %s", id)
	}
	if it.Status != StatusNeedsRetry {
		q.mu.Unlock()
		return fmt.Errorf("item %s is %s, not %s", id, it.Status, StatusNeedsRetry)
	}
	raw := it.Raw
	q.mu.Unlock()

	pm, err := q.deps.Processor.Reprocess(ctx, raw, nil)
	if err != nil {
		return err
	}
	if pm == nil || (!pm.HasArtifacts() && pm.RemoteJob == nil) {
		return fmt.Errorf("reprocessing %s still produced no artifacts", raw.Name)
	}

	q.mu.Lock()
	it.Processed = pm
	q.mu.Unlock()
	q.setStatus(it, StatusQueued, 0, "ready for upload")
	return nil
}

func (q *Queue) eligible() []*Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*Item
	for _, it := range q.items {
		if it.Status == StatusQueued || it.Status == StatusError {
			out = append(out, it)
		}
	}
	return out
}

func (q *Queue) statusOf(it *Item) Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return it.Status
}

// attempt drives one item through every phase. All item mutation goes
// through the queue lock; phase side effects happen outside it.
func (q *Queue) attempt(ctx context.Context, it *Item) {
	scope := q.deps.Tracker.NewScope(ctx)
	defer scope.Cancel()

	// processing
	q.setStatus(it, StatusProcessing, 5, fmt.Sprintf("Processing %s", it.Raw.Name))
	pm := q.usableResult(it)
	if pm == nil {
		var err error
		pm, err = q.process(scope.Ctx, it)
		if err != nil {
			q.fail(it, fmt.Sprintf("processing failed: %v", err), faults.IsRetryable(err))
			return
		}
		q.mu.Lock()
		it.Processed = pm
		q.mu.Unlock()
	}

	// Under-delivery of a mandatory category is user-actionable, not an
	// error.
	if !pm.HasArtifacts() && pm.RemoteJob == nil && q.cfg.MandatoryArtifacts[it.Raw.Category] {
		q.setStatus(it, StatusNeedsRetry, 45, fmt.Sprintf("no %s artifact could be produced here", it.Raw.Category))
		metrics.ItemsTotal.WithLabelValues(string(StatusNeedsRetry)).Inc()
		q.updateDepth()
		return
	}

	if scope.Ctx.Err() != nil {
		q.fail(it, "cancelled before upload", true)
		return
	}

	// uploading_original
	q.setStatus(it, StatusUploadingOriginal, 50, fmt.Sprintf("Uploading %s", it.Raw.Name))
	if err := q.uploadOriginal(scope.Ctx, it); err != nil {
		q.fail(it, fmt.Sprintf("original upload failed: %v", err), faults.IsRetryable(err))
		return
	}

	if scope.Ctx.Err() != nil {
		q.fail(it, "cancelled during upload", true)
		return
	}

	// uploading_processed
	if pm.HasArtifacts() {
		q.setStatus(it, StatusUploadingProcessed, 75, fmt.Sprintf("Uploading artifacts for %s", it.Raw.Name))
		if err := q.uploadArtifacts(scope.Ctx, it, pm); err != nil {
			q.fail(it, fmt.Sprintf("artifact upload failed: %v", err), faults.IsRetryable(err))
			return
		}
	}

	// A delegated conversion must report success before the item may
	// finalize.
	if pm.RemoteJob != nil {
		q.setStatus(it, StatusUploadingProcessed, 80, fmt.Sprintf("Waiting for server-side conversion of %s", it.Raw.Name))
		if err := q.awaitRemoteJob(scope.Ctx, it, pm.RemoteJob.ID); err != nil {
			q.fail(it, fmt.Sprintf("server-side conversion failed: %v", err), faults.IsRetryable(err))
			return
		}
	}

	// finalizing / original-only completion
	if len(q.artifactPaths(it)) > 0 {
		q.setStatus(it, StatusFinalizing, 90, fmt.Sprintf("Finalizing %s", it.Raw.Name))
		if err := q.finalize(scope.Ctx, it, pm); err != nil {
			q.fail(it, fmt.Sprintf("finalize failed: %v", err), true)
			return
		}
	} else {
		// Original-only: the row already points at the original upload.
		if err := q.markRowComplete(scope.Ctx, it.RowID); err != nil {
			q.fail(it, fmt.Sprintf("finalize failed: %v", err), true)
			return
		}
	}

	q.complete(it)
}

// usableResult returns the item's installed processing result when it
// already carries deliverable output. A successful Retry installs its
// result this way; reprocessing again would discard it.
func (q *Queue) usableResult(it *Item) *transcode.ProcessedMedia {
	q.mu.Lock()
	defer q.mu.Unlock()
	if it.Processed != nil && (it.Processed.HasArtifacts() || it.Processed.RemoteJob != nil) {
		return it.Processed
	}
	return nil
}

func (q *Queue) process(ctx context.Context, it *Item) (*transcode.ProcessedMedia, error) {
	report := func(p pipeline.Progress) {
		// Map the orchestrator's 0-100 into this item's 5-45 band.
		q.setProgress(it, 5+p.Percent*40/100, p.Message)
	}
	return q.deps.Processor.Process(ctx, it.Raw, report)
}

func (q *Queue) uploadOriginal(ctx context.Context, it *Item) error {
	f, err := os.Open(it.Raw.Path)
	if err != nil {
		return faults.Wrap(faults.Unknown, "queue.upload", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("failed to close %s: %v", it.Raw.Path, err)
		}
	}()

	start := time.Now()
	size := it.Raw.Size
	cfg := progress.ReaderConfig{
		IdleTimeout: q.cfg.UploadIdleTimeout,
		OnProgress: func(read int64, _ time.Duration) {
			if size > 0 {
				q.setProgress(it, 50+int(read*20/size), "")
			}
		},
	}
	pr := progress.NewReader(ctx, f, cfg)
	defer pr.Close()

	path := storage.OriginalPath(it.ID, it.Raw.Name)
	stored, err := q.deps.Store.Upload(ctx, path, q.pace(ctx, pr), storage.UploadOptions{
		ContentType: it.Raw.DeclaredMIME,
	})
	if err != nil {
		return err
	}

	elapsed := time.Since(start)
	if q.deps.Advisor != nil {
		q.deps.Advisor.RecordTransfer(size, elapsed)
	}
	metrics.UploadBytesTotal.WithLabelValues("original").Add(float64(size))
	metrics.UploadDuration.Observe(elapsed.Seconds())

	rowID, err := q.deps.Catalog.CreateMediaRow(ctx, catalog.MediaFields{
		FileName:       it.Raw.Name,
		Category:       string(it.Raw.Category),
		DeclaredMIME:   it.Raw.DeclaredMIME,
		OriginalPath:   stored,
		OriginalBytes:  it.Raw.Size,
		PlaceholderURI: q.placeholder(it),
	})
	if err != nil {
		// Nothing durable should remain when the row never existed.
		if delErr := q.deps.Store.Delete(context.WithoutCancel(ctx), stored); delErr != nil {
			logging.Warn("failed to clean up original %s: %v", stored, delErr)
		}
		return err
	}

	q.mu.Lock()
	it.OriginalPath = stored
	it.RowID = rowID
	q.mu.Unlock()
	return nil
}

// uploadArtifacts lands every artifact or none: a partial set must not
// survive, or a finalized row could reference bytes that never landed.
func (q *Queue) uploadArtifacts(ctx context.Context, it *Item, pm *transcode.ProcessedMedia) error {
	kinds := make([]transcode.ArtifactKind, 0, len(pm.Artifacts))
	for kind := range pm.Artifacts {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	uploaded := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		data := pm.Artifacts[kind]
		mime := pm.ArtifactMIME[kind]
		path := storage.ArtifactPath(it.ID, kind, mime)

		_, err := q.deps.Store.Upload(ctx, path, q.pace(ctx, bytes.NewReader(data)), storage.UploadOptions{
			ContentType: mime,
		})
		if err != nil {
			for _, p := range uploaded {
				if delErr := q.deps.Store.Delete(context.WithoutCancel(ctx), p); delErr != nil {
					logging.Warn("failed to roll back artifact %s: %v", p, delErr)
				}
			}
			return err
		}

		uploaded = append(uploaded, path)
		metrics.UploadBytesTotal.WithLabelValues("artifact").Add(float64(len(data)))
		q.mu.Lock()
		it.ArtifactPaths[string(kind)] = path
		q.mu.Unlock()
	}
	return nil
}

func (q *Queue) awaitRemoteJob(ctx context.Context, it *Item, jobID string) error {
	if q.deps.Poller == nil {
		return faults.New(faults.CapabilityUnavailable, "queue.remote", "no job poller configured")
	}
	status, err := q.deps.Poller.PollJob(ctx, jobID)
	if err != nil {
		return err
	}
	if status.ResultPath != "" {
		q.mu.Lock()
		it.ArtifactPaths[string(transcode.KindImage)] = status.ResultPath
		q.mu.Unlock()
	}
	return nil
}

func (q *Queue) finalize(ctx context.Context, it *Item, pm *transcode.ProcessedMedia) error {
	// Finalizing outlives a batch cancellation so cancelling never
	// leaves a half-finalized row.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), q.cfg.FinalizeTimeout)
	defer cancel()

	paths := q.artifactPaths(it)
	return q.deps.Catalog.FinalizeMedia(fctx, catalog.FinalizeRequest{
		ID:               it.RowID,
		CanonicalPath:    canonicalPath(paths),
		ArtifactPaths:    paths,
		DetectedMIME:     pm.DetectedMIME,
		Width:            pm.Width,
		Height:           pm.Height,
		Duration:         pm.Duration,
		ProcessedBytes:   pm.ProcessedBytes,
		CompressionRatio: pm.CompressionRatio,
	})
}

// markRowComplete marks an original-only row complete, detached from
// batch cancellation like finalize.
func (q *Queue) markRowComplete(ctx context.Context, rowID string) error {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), q.cfg.FinalizeTimeout)
	defer cancel()
	return q.deps.Catalog.UpdateStatus(fctx, rowID, catalog.StatusComplete, "")
}

// canonicalPath picks the row's canonical artifact, preferring the
// dominant kinds.
func canonicalPath(paths map[string]string) string {
	for _, kind := range []transcode.ArtifactKind{transcode.KindImage, transcode.KindVideo, transcode.KindThumbnail, transcode.KindAudio} {
		if p, ok := paths[string(kind)]; ok {
			return p
		}
	}
	for _, p := range paths {
		return p
	}
	return ""
}

func (q *Queue) artifactPaths(it *Item) map[string]string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[string]string, len(it.ArtifactPaths))
	for k, v := range it.ArtifactPaths {
		out[k] = v
	}
	return out
}

func (q *Queue) placeholder(it *Item) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if it.Processed != nil {
		return it.Processed.TinyPlaceholder
	}
	return ""
}

// pace wraps r with the advisory rate cap for the current tier.
func (q *Queue) pace(ctx context.Context, r io.Reader) io.Reader {
	if q.deps.Advisor == nil {
		return r
	}
	bps := q.cfg.PaceBytesPerSecond[q.deps.Advisor.Tier()]
	if bps <= 0 {
		return r
	}
	burst := int(bps)
	if burst < 64*1024 {
		burst = 64 * 1024
	}
	return &pacedReader{r: r, ctx: ctx, limiter: rate.NewLimiter(rate.Limit(bps), burst)}
}

type pacedReader struct {
	r       io.Reader
	ctx     context.Context
	limiter *rate.Limiter
}

func (p *pacedReader) Read(b []byte) (int, error) {
	if burst := p.limiter.Burst(); len(b) > burst {
		b = b[:burst]
	}
	n, err := p.r.Read(b)
	if n > 0 {
		if waitErr := p.limiter.WaitN(p.ctx, n); waitErr != nil {
			return n, waitErr
		}
	}
	return n, err
}

func (q *Queue) setStatus(it *Item, status Status, pct int, msg string) {
	q.mu.Lock()
	it.Status = status
	if pct > it.Progress || status == StatusQueued {
		it.Progress = pct
	}
	if status != StatusError {
		it.Error = ""
	}
	snap := Event{ItemID: it.ID, Status: it.Status, Progress: it.Progress, Message: msg}
	q.mu.Unlock()

	q.emit(snap)
}

func (q *Queue) setProgress(it *Item, pct int, msg string) {
	q.mu.Lock()
	if pct > it.Progress {
		it.Progress = pct
	}
	snap := Event{ItemID: it.ID, Status: it.Status, Progress: it.Progress, Message: msg}
	q.mu.Unlock()

	q.emit(snap)
}

func (q *Queue) fail(it *Item, msg string, retryable bool) {
	q.mu.Lock()
	it.Status = StatusError
	it.Error = msg
	it.Retryable = retryable
	rowID := it.RowID
	snap := Event{ItemID: it.ID, Status: StatusError, Progress: it.Progress, Message: msg}
	q.mu.Unlock()

	if rowID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), q.cfg.FinalizeTimeout)
		if err := q.deps.Catalog.UpdateStatus(ctx, rowID, catalog.StatusError, msg); err != nil {
			logging.Warn("failed to record error status for row %s: %v", rowID, err)
		}
		cancel()
	}

	metrics.ItemsTotal.WithLabelValues(string(StatusError)).Inc()
	logging.Warn("item %s (%s) failed: %s", it.ID, it.Raw.Name, msg)
	q.emit(snap)
	q.updateDepth()
}

func (q *Queue) complete(it *Item) {
	q.setStatus(it, StatusComplete, 100, fmt.Sprintf("%s delivered", it.Raw.Name))
	metrics.ItemsTotal.WithLabelValues(string(StatusComplete)).Inc()
	q.updateDepth()

	// Completed items leave the visible queue shortly after, so the
	// queue reflects only in-flight and failed work.
	if q.cfg.EvictDelay > 0 {
		id := it.ID
		time.AfterFunc(q.cfg.EvictDelay, func() {
			if item, ok := q.Get(id); ok && item.Status == StatusComplete {
				q.Remove(id)
				q.updateDepth()
			}
		})
	}
}

func (q *Queue) emit(ev Event) {
	if q.deps.OnEvent != nil {
		q.deps.OnEvent(ev)
	}
}

func (q *Queue) updateDepth() {
	q.mu.Lock()
	depth := 0
	for _, it := range q.items {
		if !it.Status.Terminal() && it.Status != StatusError {
			depth++
		}
	}
	q.mu.Unlock()
	metrics.QueueDepth.Set(float64(depth))
}
