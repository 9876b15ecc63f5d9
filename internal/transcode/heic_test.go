package transcode

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"media-ingest/internal/capability"
	"media-ingest/internal/faults"
	"media-ingest/internal/lifecycle"

	"github.com/disintegration/imaging"
)

type fakeConverter struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, req ConvertRequest) (ConvertResult, error)
}

func (c *fakeConverter) Convert(ctx context.Context, req ConvertRequest) (ConvertResult, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.fn(ctx, req)
}

func (c *fakeConverter) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// hangingConverter blocks until its context is cancelled, simulating a
// stuck decoder.
func hangingConverter() *fakeConverter {
	return &fakeConverter{fn: func(ctx context.Context, _ ConvertRequest) (ConvertResult, error) {
		<-ctx.Done()
		return ConvertResult{}, ctx.Err()
	}}
}

// workingConverter writes a real JPEG to the requested output path.
func workingConverter(t *testing.T) *fakeConverter {
	t.Helper()
	return &fakeConverter{fn: func(_ context.Context, req ConvertRequest) (ConvertResult, error) {
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, imaging.New(400, 300, color.NRGBA{R: 120, G: 120, B: 120, A: 255}), imaging.JPEG); err != nil {
			t.Fatalf("Failed to encode test JPEG: %v", err)
		}
		if err := os.WriteFile(req.OutputPath, buf.Bytes(), 0o644); err != nil {
			return ConvertResult{}, err
		}
		return ConvertResult{ID: req.ID, OutputPath: req.OutputPath}, nil
	}}
}

type fakeStager struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (s *fakeStager) Upload(_ context.Context, path string, r io.Reader, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	s.paths = append(s.paths, path)
	return path, nil
}

func (s *fakeStager) uploadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paths)
}

type fakeInvoker struct {
	mu    sync.Mutex
	specs []JobSpec
	err   error
}

func (i *fakeInvoker) Invoke(_ context.Context, spec JobSpec) (JobHandle, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return JobHandle{}, i.err
	}
	i.specs = append(i.specs, spec)
	return JobHandle{ID: "job-42"}, nil
}

func (i *fakeInvoker) invokeCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.specs)
}

func heicInput(t *testing.T) RawInput {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photo.heic")
	if err := os.WriteFile(path, []byte("heic-original-bytes"), 0o644); err != nil {
		t.Fatalf("Failed to write test input: %v", err)
	}
	return RawInput{
		Name:         "photo.heic",
		Path:         path,
		Size:         19,
		DeclaredMIME: "image/heic",
		Category:     "image",
	}
}

func newHEICTranscoder(t *testing.T, worker Converter, stager Stager, invoker Invoker) *HEICTranscoder {
	t.Helper()
	tracker, err := lifecycle.NewTracker(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create tracker: %v", err)
	}
	t.Cleanup(tracker.Shutdown)

	cfg := DefaultHEICConfig()
	cfg.WorkerTimeout = 50 * time.Millisecond
	return NewHEICTranscoder(cfg, worker, stager, invoker, tracker)
}

func heicCaps() capability.CapabilitySet {
	return capability.CapabilitySet{NativeDecode: true, HelperAvailable: true}
}

func TestHEICWorkerSuccess(t *testing.T) {
	stager := &fakeStager{}
	invoker := &fakeInvoker{}
	tr := newHEICTranscoder(t, workingConverter(t), stager, invoker)

	pm, err := tr.Transcode(context.Background(), heicInput(t), heicCaps())
	if err != nil {
		t.Fatalf("Transcode returned error: %v", err)
	}
	if pm.Artifacts[KindImage] == nil {
		t.Fatal("Expected a converted image artifact")
	}
	if pm.ArtifactMIME[KindImage] != "image/jpeg" {
		t.Errorf("Expected image/jpeg, got %q", pm.ArtifactMIME[KindImage])
	}
	if pm.Width != 400 || pm.Height != 300 {
		t.Errorf("Expected 400x300, got %dx%d", pm.Width, pm.Height)
	}
	if pm.RemoteJob != nil {
		t.Error("Local conversion should not produce a remote job")
	}
	if stager.uploadCount() != 0 || invoker.invokeCount() != 0 {
		t.Error("Successful local conversion should never touch the server")
	}
}

func TestHEICWorkerTimeoutDelegates(t *testing.T) {
	worker := hangingConverter()
	stager := &fakeStager{}
	invoker := &fakeInvoker{}
	tr := newHEICTranscoder(t, worker, stager, invoker)

	pm, err := tr.Transcode(context.Background(), heicInput(t), heicCaps())
	if err != nil {
		t.Fatalf("Expected delegation to succeed, got: %v", err)
	}

	if worker.callCount() != 1 {
		t.Errorf("Expected exactly 1 worker attempt, got %d", worker.callCount())
	}
	if stager.uploadCount() != 1 {
		t.Errorf("Expected exactly 1 staging upload, got %d", stager.uploadCount())
	}
	if invoker.invokeCount() != 1 {
		t.Errorf("Expected exactly 1 job submission, got %d", invoker.invokeCount())
	}

	if pm.RemoteJob == nil || pm.RemoteJob.ID != "job-42" {
		t.Fatalf("Expected remote job handle, got %+v", pm.RemoteJob)
	}
	if pm.HasArtifacts() {
		t.Error("Delegated conversion must not carry artifact bytes")
	}
	if !strings.HasPrefix(stager.paths[0], "incoming/heic/") {
		t.Errorf("Expected staging under incoming/heic/, got %q", stager.paths[0])
	}
	if invoker.specs[0].Kind != "heic-convert" {
		t.Errorf("Expected heic-convert job, got %q", invoker.specs[0].Kind)
	}
}

func TestHEICStagingFailure(t *testing.T) {
	stager := &fakeStager{err: errors.New("connection refused")}
	tr := newHEICTranscoder(t, hangingConverter(), stager, &fakeInvoker{})

	pm, err := tr.Transcode(context.Background(), heicInput(t), heicCaps())
	if pm != nil {
		t.Fatal("Expected no result on staging failure")
	}
	if faults.KindOf(err) != faults.NetworkFailure {
		t.Fatalf("Expected NetworkFailure, got %v (%v)", faults.KindOf(err), err)
	}
	var fe *faults.Error
	if !errors.As(err, &fe) || fe.Op != "transcode.heic.stage" {
		t.Errorf("Expected op transcode.heic.stage, got %+v", fe)
	}
	if !faults.IsRetryable(err) {
		t.Error("Network staging failures should be retryable")
	}
}

func TestHEICInvokeFailure(t *testing.T) {
	invoker := &fakeInvoker{err: errors.New("service unavailable")}
	tr := newHEICTranscoder(t, hangingConverter(), &fakeStager{}, invoker)

	_, err := tr.Transcode(context.Background(), heicInput(t), heicCaps())
	var fe *faults.Error
	if !errors.As(err, &fe) || fe.Op != "transcode.heic.invoke" {
		t.Errorf("Expected op transcode.heic.invoke, got %v", err)
	}
	if faults.KindOf(err) != faults.NetworkFailure {
		t.Errorf("Expected NetworkFailure, got %v", faults.KindOf(err))
	}
}

func TestHEICNoDelegationAvailable(t *testing.T) {
	tr := newHEICTranscoder(t, hangingConverter(), nil, nil)

	_, err := tr.Transcode(context.Background(), heicInput(t), heicCaps())
	if faults.KindOf(err) != faults.CapabilityUnavailable {
		t.Errorf("Expected CapabilityUnavailable, got %v", err)
	}
}

func TestHEICSkipsWorkerWithoutHelper(t *testing.T) {
	worker := workingConverter(t)
	stager := &fakeStager{}
	invoker := &fakeInvoker{}
	tr := newHEICTranscoder(t, worker, stager, invoker)

	caps := capability.CapabilitySet{NativeDecode: true}
	pm, err := tr.Transcode(context.Background(), heicInput(t), caps)
	if err != nil {
		t.Fatalf("Transcode returned error: %v", err)
	}
	if worker.callCount() != 0 {
		t.Error("Worker must not run without the helper capability")
	}
	if pm.RemoteJob == nil {
		t.Error("Expected delegation when the helper is unavailable")
	}
}

func TestSubprocessConverterArgs(t *testing.T) {
	runner := &fakeRunner{}
	conv := NewSubprocessConverter(runner, "")

	out := filepath.Join(t.TempDir(), "out.jpg")
	res, err := conv.Convert(context.Background(), ConvertRequest{
		ID:         "req-1",
		InputPath:  "/in/photo.heic",
		OutputPath: out,
		MaxEdge:    1920,
	})
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	if res.OutputPath != out {
		t.Errorf("Expected output path %q, got %q", out, res.OutputPath)
	}

	args := runner.runArgs(0)
	if !strings.HasPrefix(args, "ffmpeg ") {
		t.Errorf("Expected default ffmpeg binary, got: %s", args)
	}
	if !strings.Contains(args, "min(1920,iw)") {
		t.Errorf("Expected edge bound in scale filter, got: %s", args)
	}
}
