package progress

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestReaderPassThrough(t *testing.T) {
	var reads atomic.Int64
	cfg := DefaultReaderConfig()
	cfg.OnProgress = func(n int64, _ time.Duration) { reads.Store(n) }

	r := NewReader(context.Background(), strings.NewReader("hello world"), cfg)
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("Bytes corrupted: %q", data)
	}
	if r.BytesRead() != 11 || reads.Load() != 11 {
		t.Errorf("Expected 11 bytes observed, got %d / %d", r.BytesRead(), reads.Load())
	}
}

// blockingReader blocks forever after serving its initial payload.
type blockingReader struct {
	payload []byte
	block   chan struct{}
}

func (b *blockingReader) Read(p []byte) (int, error) {
	if len(b.payload) > 0 {
		n := copy(p, b.payload)
		b.payload = b.payload[n:]
		return n, nil
	}
	<-b.block
	return 0, io.EOF
}

func TestReaderDetectsStall(t *testing.T) {
	br := &blockingReader{payload: []byte("x"), block: make(chan struct{})}
	defer close(br.block)

	cfg := ReaderConfig{IdleTimeout: 20 * time.Millisecond}
	r := NewReader(context.Background(), br, cfg)
	defer r.Close()

	buf := make([]byte, 8)
	if _, err := r.Read(buf); err != nil {
		t.Fatalf("First read failed: %v", err)
	}

	// The next read happens after the stall is detected.
	time.Sleep(60 * time.Millisecond)
	_, err := r.Read(buf)
	if !errors.Is(err, ErrStalled) {
		t.Errorf("Expected ErrStalled, got %v", err)
	}
}

func TestReaderMaxDuration(t *testing.T) {
	cfg := ReaderConfig{IdleTimeout: 4 * time.Millisecond, MaxDuration: 10 * time.Millisecond}
	// Keep feeding bytes so the idle window never triggers.
	r := NewReader(context.Background(), &infiniteReader{}, cfg)
	defer r.Close()

	buf := make([]byte, 1)
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("Ceiling never triggered")
		default:
		}
		if _, err := r.Read(buf); err != nil {
			if !errors.Is(err, ErrMaxDuration) {
				t.Errorf("Expected ErrMaxDuration, got %v", err)
			}
			return
		}
	}
}

type infiniteReader struct{}

func (infiniteReader) Read(p []byte) (int, error) {
	time.Sleep(time.Millisecond)
	p[0] = 'x'
	return 1, nil
}

func TestReaderParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewReader(ctx, bytes.NewReader(make([]byte, 1024)), DefaultReaderConfig())
	defer r.Close()

	cancel()
	time.Sleep(5 * time.Millisecond)
	if _, err := r.Read(make([]byte, 8)); err == nil {
		t.Error("Expected error after parent cancellation")
	}
}

func TestReaderCloseIdempotent(t *testing.T) {
	r := NewReader(context.Background(), strings.NewReader("x"), DefaultReaderConfig())
	r.Close()
	r.Close()
}
