package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"media-ingest/internal/faults"
	"media-ingest/internal/logging"
	"media-ingest/internal/metrics"
	"media-ingest/internal/transcode"
)

// JobState is the server-reported lifecycle state of a delegated job.
type JobState string

const (
	StateQueued    JobState = "queued"
	StateRunning   JobState = "running"
	StateSucceeded JobState = "succeeded"
	StateFailed    JobState = "failed"
)

// Terminal reports whether the state is final.
func (s JobState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// JobStatus is one observation of a delegated job.
type JobStatus struct {
	ID         string   `json:"id"`
	State      JobState `json:"state"`
	ResultPath string   `json:"result_path,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// Config holds client policy.
type Config struct {
	// BaseURL is the service root, e.g. https://transcode.example.com.
	BaseURL string
	// APIKey is sent as a bearer token when non-empty.
	APIKey string
	// RequestTimeout bounds each HTTP call.
	RequestTimeout time.Duration
	// PollInterval and PollTimeout govern PollJob.
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// DefaultConfig returns the product policy defaults.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		RequestTimeout: 30 * time.Second,
		PollInterval:   2 * time.Second,
		PollTimeout:    5 * time.Minute,
	}
}

// Client talks to the transcode service. It implements the invoker
// seam the HEIC transcoder delegates through.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a client.
func New(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

func (c *Client) url(path string) string {
	return strings.TrimSuffix(c.cfg.BaseURL, "/") + path
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return faults.Wrap(faults.NetworkFailure, "remote.request", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn("failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return faults.Wrap(faults.NetworkFailure, "remote.request", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return faults.New(faults.NetworkFailure, "remote.request",
			fmt.Sprintf("%s returned %d: %s", req.URL.Path, resp.StatusCode, truncate(string(body), 256)))
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return faults.Wrap(faults.Unknown, "remote.decode", err)
		}
	}
	return nil
}

// Invoke submits a job and returns its handle.
func (c *Client) Invoke(ctx context.Context, spec transcode.JobSpec) (transcode.JobHandle, error) {
	payload, err := json.Marshal(spec)
	if err != nil {
		return transcode.JobHandle{}, faults.Wrap(faults.Unknown, "remote.invoke", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/v1/jobs"), bytes.NewReader(payload))
	if err != nil {
		return transcode.JobHandle{}, faults.Wrap(faults.Unknown, "remote.invoke", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var created struct {
		ID string `json:"id"`
	}
	if err := c.do(req, &created); err != nil {
		return transcode.JobHandle{}, err
	}
	if created.ID == "" {
		return transcode.JobHandle{}, faults.New(faults.NetworkFailure, "remote.invoke", "service returned no job id")
	}

	logging.Debug("submitted remote job %s (%s)", created.ID, spec.Kind)
	return transcode.JobHandle{ID: created.ID}, nil
}

// GetJobStatus fetches one status observation.
func (c *Client) GetJobStatus(ctx context.Context, jobID string) (JobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/v1/jobs/"+jobID), nil)
	if err != nil {
		return JobStatus{}, faults.Wrap(faults.Unknown, "remote.status", err)
	}

	var status JobStatus
	if err := c.do(req, &status); err != nil {
		return JobStatus{}, err
	}
	return status, nil
}

// PollJob polls until the job reaches a terminal state or the poll
// deadline passes. A failed job is returned as an error; transient
// status-fetch failures are tolerated and simply retried on the next
// tick.
func (c *Client) PollJob(ctx context.Context, jobID string) (JobStatus, error) {
	deadline := time.NewTimer(c.cfg.PollTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		status, err := c.GetJobStatus(ctx, jobID)
		if err != nil {
			logging.Debug("status fetch for job %s failed: %v", jobID, err)
		} else if status.State.Terminal() {
			if status.State == StateFailed {
				metrics.RemoteJobsTotal.WithLabelValues("failed").Inc()
				return status, faults.New(faults.NetworkFailure, "remote.job",
					fmt.Sprintf("job %s failed: %s", jobID, status.Error))
			}
			metrics.RemoteJobsTotal.WithLabelValues("succeeded").Inc()
			return status, nil
		}

		select {
		case <-ctx.Done():
			return JobStatus{}, ctx.Err()
		case <-deadline.C:
			metrics.RemoteJobsTotal.WithLabelValues("timeout").Inc()
			return JobStatus{}, faults.New(faults.Timeout, "remote.job",
				fmt.Sprintf("job %s did not finish within %v", jobID, c.cfg.PollTimeout))
		case <-ticker.C:
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
