package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"media-ingest/internal/faults"
	"media-ingest/internal/transcode"
)

func testConfig(url string) Config {
	return Config{
		BaseURL:        url,
		RequestTimeout: time.Second,
		PollInterval:   5 * time.Millisecond,
		PollTimeout:    500 * time.Millisecond,
	}
}

func TestInvoke(t *testing.T) {
	var gotSpec transcode.JobSpec
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/jobs" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("Expected bearer token, got %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotSpec); err != nil {
			t.Errorf("Failed to decode spec: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"id":"job-7"}`)); err != nil {
			t.Errorf("Failed to write response: %v", err)
		}
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.APIKey = "secret"
	c := New(cfg)

	handle, err := c.Invoke(context.Background(), transcode.JobSpec{
		Kind:       "heic-convert",
		SourcePath: "incoming/heic/x-photo.heic",
		FileName:   "photo.heic",
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if handle.ID != "job-7" {
		t.Errorf("Expected job-7, got %q", handle.ID)
	}
	if gotSpec.Kind != "heic-convert" {
		t.Errorf("Spec not transmitted: %+v", gotSpec)
	}
}

func TestInvokeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(testConfig(srv.URL)).Invoke(context.Background(), transcode.JobSpec{Kind: "heic-convert"})
	if faults.KindOf(err) != faults.NetworkFailure {
		t.Errorf("Expected NetworkFailure, got %v", err)
	}
}

func TestPollJobWaitsForTerminalState(t *testing.T) {
	var polls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := polls.Add(1)
		status := JobStatus{ID: "job-7", State: StateRunning}
		if n >= 3 {
			status.State = StateSucceeded
			status.ResultPath = "processed/job-7/image.jpg"
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			t.Errorf("Failed to encode status: %v", err)
		}
	}))
	defer srv.Close()

	status, err := New(testConfig(srv.URL)).PollJob(context.Background(), "job-7")
	if err != nil {
		t.Fatalf("PollJob failed: %v", err)
	}
	if status.State != StateSucceeded {
		t.Errorf("Expected succeeded, got %q", status.State)
	}
	if status.ResultPath != "processed/job-7/image.jpg" {
		t.Errorf("Expected result path, got %q", status.ResultPath)
	}
	if polls.Load() < 3 {
		t.Errorf("Expected at least 3 polls, got %d", polls.Load())
	}
}

func TestPollJobFailedJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if err := json.NewEncoder(w).Encode(JobStatus{ID: "j", State: StateFailed, Error: "codec error"}); err != nil {
			t.Errorf("Failed to encode status: %v", err)
		}
	}))
	defer srv.Close()

	_, err := New(testConfig(srv.URL)).PollJob(context.Background(), "j")
	if faults.KindOf(err) != faults.NetworkFailure {
		t.Errorf("Expected NetworkFailure for failed job, got %v", err)
	}
}

func TestPollJobTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if err := json.NewEncoder(w).Encode(JobStatus{ID: "j", State: StateRunning}); err != nil {
			t.Errorf("Failed to encode status: %v", err)
		}
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.PollTimeout = 30 * time.Millisecond
	_, err := New(cfg).PollJob(context.Background(), "j")
	if faults.KindOf(err) != faults.Timeout {
		t.Errorf("Expected Timeout, got %v", err)
	}
}

func TestPollJobCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if err := json.NewEncoder(w).Encode(JobStatus{ID: "j", State: StateRunning}); err != nil {
			t.Errorf("Failed to encode status: %v", err)
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(15 * time.Millisecond)
		cancel()
	}()

	_, err := New(testConfig(srv.URL)).PollJob(ctx, "j")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestJobStateTerminal(t *testing.T) {
	for state, want := range map[JobState]bool{
		StateQueued:    false,
		StateRunning:   false,
		StateSucceeded: true,
		StateFailed:    true,
	} {
		if state.Terminal() != want {
			t.Errorf("%s.Terminal() = %v, want %v", state, state.Terminal(), want)
		}
	}
}
