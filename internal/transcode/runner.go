package transcode

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"media-ingest/internal/lifecycle"
)

// CommandRunner executes external media tools. The ladder tiers go
// through this seam so tests can simulate tool success and failure
// without ffmpeg installed.
type CommandRunner interface {
	// Run executes a command and waits for it, returning an error that
	// includes captured stderr on failure.
	Run(ctx context.Context, name string, args ...string) error
	// Output executes a command and returns its stdout.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct {
	tracker *lifecycle.Tracker
}

// NewExecRunner returns a CommandRunner backed by os/exec. Started
// processes are tracked so session teardown kills anything still
// running.
func NewExecRunner(tracker *lifecycle.Tracker) CommandRunner {
	return &execRunner{tracker: tracker}
}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", name, err)
	}
	h := r.tracker.TrackProcess(cmd)
	defer r.tracker.Release(h)

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", name, err, truncate(stderr.String(), 512))
	}
	return nil
}

func (r *execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}
	h := r.tracker.TrackProcess(cmd)
	defer r.tracker.Release(h)

	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", name, err, truncate(stderr.String(), 512))
	}
	return stdout.Bytes(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
