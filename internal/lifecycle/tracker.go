package lifecycle

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"media-ingest/internal/logging"
)

// Handle identifies a tracked resource.
type Handle string

// Tracker issues and revokes transient resource handles. It is safe for
// concurrent use.
type Tracker struct {
	scratchDir string

	mu     sync.Mutex
	next   uint64
	files  map[Handle]string
	procs  map[Handle]*exec.Cmd
	scopes map[Handle]context.CancelFunc
	closed bool
}

// NewTracker creates a tracker whose scratch files live under scratchDir.
// The directory is created if needed.
func NewTracker(scratchDir string) (*Tracker, error) {
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	return &Tracker{
		scratchDir: scratchDir,
		files:      make(map[Handle]string),
		procs:      make(map[Handle]*exec.Cmd),
		scopes:     make(map[Handle]context.CancelFunc),
	}, nil
}

func (t *Tracker) handle(prefix string) Handle {
	t.next++
	return Handle(fmt.Sprintf("%s-%d", prefix, t.next))
}

// AcquireScratchFile creates a tracked temporary file and returns its
// handle and path. The pattern follows os.CreateTemp conventions.
func (t *Tracker) AcquireScratchFile(pattern string) (Handle, string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return "", "", fmt.Errorf("tracker is shut down")
	}

	f, err := os.CreateTemp(t.scratchDir, pattern)
	if err != nil {
		return "", "", fmt.Errorf("failed to create scratch file: %w", err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		logging.Warn("failed to close scratch file %s: %v", path, err)
	}

	h := t.handle("file")
	t.files[h] = path
	return h, path, nil
}

// AdoptFile tracks an existing file so Release and Shutdown will remove it.
func (t *Tracker) AdoptFile(path string) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.handle("file")
	t.files[h] = path
	return h
}

// TrackProcess tracks a started child process so Release and Shutdown
// will kill it if it is still running.
func (t *Tracker) TrackProcess(cmd *exec.Cmd) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.handle("proc")
	t.procs[h] = cmd
	return h
}

// Release revokes a handle. It is idempotent: releasing an unknown or
// already-released handle is a no-op.
func (t *Tracker) Release(h Handle) {
	t.mu.Lock()
	path, isFile := t.files[h]
	cmd, isProc := t.procs[h]
	cancel, isScope := t.scopes[h]
	delete(t.files, h)
	delete(t.procs, h)
	delete(t.scopes, h)
	t.mu.Unlock()

	switch {
	case isFile:
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logging.Warn("failed to remove scratch file %s: %v", path, err)
		}
	case isProc:
		if cmd.Process != nil && (cmd.ProcessState == nil || !cmd.ProcessState.Exited()) {
			if err := cmd.Process.Kill(); err != nil {
				logging.Debug("failed to kill tracked process %d: %v", cmd.Process.Pid, err)
			}
		}
	case isScope:
		cancel()
	}
}

// TrackedCount returns the number of handles currently tracked. Used by
// leak tests and the handles gauge.
func (t *Tracker) TrackedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.files) + len(t.procs) + len(t.scopes)
}

// ScratchDir returns the directory scratch files are created under.
func (t *Tracker) ScratchDir() string {
	return t.scratchDir
}

// Shutdown revokes every still-tracked handle. Further acquisitions fail.
func (t *Tracker) Shutdown() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	handles := make([]Handle, 0, len(t.files)+len(t.procs)+len(t.scopes))
	for h := range t.files {
		handles = append(handles, h)
	}
	for h := range t.procs {
		handles = append(handles, h)
	}
	for h := range t.scopes {
		handles = append(handles, h)
	}
	t.mu.Unlock()

	if len(handles) > 0 {
		logging.Info("lifecycle: releasing %d tracked handles at shutdown", len(handles))
	}
	for _, h := range handles {
		t.Release(h)
	}

	// Sweep any stragglers left in the scratch directory by crashed
	// helpers.
	entries, err := os.ReadDir(t.scratchDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		p := filepath.Join(t.scratchDir, entry.Name())
		if err := os.Remove(p); err != nil {
			logging.Debug("failed to sweep scratch file %s: %v", p, err)
		}
	}
}

// Scope is a cancellation scope for one logical operation: one file's
// processing run, or one upload item's network phase.
type Scope struct {
	// Ctx is cancelled when the scope is cancelled.
	Ctx context.Context

	tracker *Tracker
	handle  Handle
	cancel  context.CancelFunc
	once    sync.Once
}

// NewScope creates a tracked cancellation scope derived from parent.
func (t *Tracker) NewScope(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	t.mu.Lock()
	h := t.handle("scope")
	t.scopes[h] = cancel
	t.mu.Unlock()
	return &Scope{Ctx: ctx, tracker: t, handle: h, cancel: cancel}
}

// Cancel cancels the scope and releases its handle. Safe to call more
// than once and safe on an already-cancelled scope.
func (s *Scope) Cancel() {
	s.once.Do(func() {
		s.cancel()
		s.tracker.Release(s.handle)
	})
}

// WithTimeout races op against a deadline. The context passed to op is
// cancelled when the deadline expires, and a classified timeout error is
// returned; op is expected to honor its context and release its resources
// on the way out, so it is never silently left running against a live
// context.
func WithTimeout[T any](ctx context.Context, d time.Duration, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	opCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		val, err := fn(opCtx)
		done <- result{val, err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-opCtx.Done():
		cancel()
		var zero T
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, faultTimeout(op, d)
	}
}
