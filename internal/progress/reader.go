package progress

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

// Sentinel errors for transfer supervision.
var (
	// ErrStalled indicates no bytes moved for the idle window.
	ErrStalled = errors.New("transfer stalled")

	// ErrMaxDuration indicates the transfer exceeded its overall ceiling.
	ErrMaxDuration = errors.New("transfer exceeded maximum duration")
)

// ReaderConfig configures transfer supervision.
type ReaderConfig struct {
	// IdleTimeout is the maximum time between successful reads.
	IdleTimeout time.Duration
	// MaxDuration is the absolute transfer ceiling (0 = unlimited).
	MaxDuration time.Duration
	// OnProgress is called after every read with cumulative bytes and
	// elapsed time. May be nil.
	OnProgress func(bytesRead int64, elapsed time.Duration)
}

// DefaultReaderConfig returns sensible defaults for upload bodies.
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		IdleTimeout: 60 * time.Second,
		MaxDuration: 0,
	}
}

// Reader supervises an underlying reader. The storage client consumes
// it like any io.Reader; a stall or ceiling breach surfaces as a read
// error, which aborts the upload in flight.
type Reader struct {
	r      io.Reader
	ctx    context.Context
	cancel context.CancelCauseFunc
	cfg    ReaderConfig

	mu        sync.Mutex
	started   time.Time
	lastRead  time.Time
	bytesRead int64
	closed    bool

	checkerDone chan struct{}
}

// NewReader wraps r with supervision tied to ctx. Close must be called
// on every path to stop the stall checker.
func NewReader(ctx context.Context, r io.Reader, cfg ReaderConfig) *Reader {
	rctx, cancel := context.WithCancelCause(ctx)
	now := time.Now()

	pr := &Reader{
		r:           r,
		ctx:         rctx,
		cancel:      cancel,
		cfg:         cfg,
		started:     now,
		lastRead:    now,
		checkerDone: make(chan struct{}),
	}
	go pr.checker()
	return pr
}

// Read implements io.Reader.
func (p *Reader) Read(b []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, context.Cause(p.ctx)
	}

	n, err := p.r.Read(b)
	if n > 0 {
		p.mu.Lock()
		p.lastRead = time.Now()
		p.bytesRead += int64(n)
		read := p.bytesRead
		elapsed := time.Since(p.started)
		p.mu.Unlock()

		if p.cfg.OnProgress != nil {
			p.cfg.OnProgress(read, elapsed)
		}
	}
	return n, err
}

// BytesRead returns the cumulative byte count.
func (p *Reader) BytesRead() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bytesRead
}

// Elapsed returns time since the transfer started.
func (p *Reader) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Since(p.started)
}

// Close stops the stall checker. Idempotent.
func (p *Reader) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel(nil)
	<-p.checkerDone
}

// checker watches for stalls and the overall ceiling. Polling at a
// fraction of the idle window keeps detection latency bounded without
// a timer per read.
func (p *Reader) checker() {
	defer close(p.checkerDone)

	interval := p.cfg.IdleTimeout / 4
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.mu.Lock()
			idle := time.Since(p.lastRead)
			total := time.Since(p.started)
			p.mu.Unlock()

			if p.cfg.IdleTimeout > 0 && idle > p.cfg.IdleTimeout {
				p.cancel(ErrStalled)
				return
			}
			if p.cfg.MaxDuration > 0 && total > p.cfg.MaxDuration {
				p.cancel(ErrMaxDuration)
				return
			}
		}
	}
}
