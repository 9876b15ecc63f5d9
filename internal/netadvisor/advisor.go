package netadvisor

import (
	"context"
	"math"
	"sync"
	"time"

	"media-ingest/internal/faults"
	"media-ingest/internal/logging"
	"media-ingest/internal/metrics"

	probing "github.com/prometheus-community/pro-bing"
)

// Tier is an ordered speed classification; lower is slower.
type Tier int

const (
	// TierSlow is the most conservative tier and the default when no
	// samples exist.
	TierSlow Tier = iota
	TierModerate
	TierFast
)

func (t Tier) String() string {
	switch t {
	case TierSlow:
		return "slow"
	case TierModerate:
		return "moderate"
	case TierFast:
		return "fast"
	default:
		return "unknown"
	}
}

// Sample is one throughput observation.
type Sample struct {
	// Throughput in bytes per second.
	Throughput float64
	RTT        time.Duration
	At         time.Time
}

// Report is a point-in-time summary of network conditions.
type Report struct {
	Tier          Tier
	Stable        bool
	AvgThroughput float64
	LastRTT       time.Duration
	Samples       int
}

// Config holds advisor policy.
type Config struct {
	// WindowSize bounds the rolling sample window.
	WindowSize int
	// ProbeHost is pinged by Measure.
	ProbeHost string
	// ProbeTimeout bounds one measurement.
	ProbeTimeout time.Duration
	// ModerateBps and FastBps are the tier thresholds.
	ModerateBps float64
	FastBps     float64
	// MaxCoV is the coefficient-of-variation ceiling for a stable
	// verdict.
	MaxCoV float64
}

// DefaultConfig returns the product policy defaults.
func DefaultConfig() Config {
	return Config{
		WindowSize:   8,
		ProbeHost:    "1.1.1.1",
		ProbeTimeout: 5 * time.Second,
		ModerateBps:  250_000,
		FastBps:      1_500_000,
		MaxCoV:       0.35,
	}
}

// Advisor maintains the rolling window and classification. Safe for
// concurrent use.
type Advisor struct {
	cfg Config

	mu      sync.Mutex
	samples []Sample
	lastRTT time.Duration
}

// New creates an advisor with an empty window.
func New(cfg Config) *Advisor {
	return &Advisor{cfg: cfg}
}

// RecordTransfer feeds an observed upload back into the window. Zero
// or nonsense observations are ignored.
func (a *Advisor) RecordTransfer(bytes int64, d time.Duration) {
	if bytes <= 0 || d <= 0 {
		return
	}
	throughput := float64(bytes) / d.Seconds()

	a.mu.Lock()
	a.samples = append(a.samples, Sample{Throughput: throughput, RTT: a.lastRTT, At: time.Now()})
	if len(a.samples) > a.cfg.WindowSize {
		a.samples = a.samples[len(a.samples)-a.cfg.WindowSize:]
	}
	a.mu.Unlock()

	metrics.NetworkThroughputBytes.Set(throughput)
	metrics.NetworkTier.Set(float64(a.Tier()))
}

// Measure runs an on-demand round-trip measurement against the probe
// host. It updates the advisor's RTT but records no throughput sample.
func (a *Advisor) Measure(ctx context.Context) (time.Duration, error) {
	pinger, err := probing.NewPinger(a.cfg.ProbeHost)
	if err != nil {
		return 0, faults.Wrap(faults.NetworkFailure, "netadvisor.measure", err)
	}
	pinger.Count = 3
	pinger.Timeout = a.cfg.ProbeTimeout
	pinger.SetPrivileged(false)

	if err := pinger.RunWithContext(ctx); err != nil {
		return 0, faults.Wrap(faults.NetworkFailure, "netadvisor.measure", err)
	}
	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return 0, faults.New(faults.NetworkFailure, "netadvisor.measure", "no echo replies")
	}

	a.mu.Lock()
	a.lastRTT = stats.AvgRtt
	a.mu.Unlock()

	metrics.NetworkRTTSeconds.Set(stats.AvgRtt.Seconds())
	logging.Debug("measured RTT to %s: %v", a.cfg.ProbeHost, stats.AvgRtt)
	return stats.AvgRtt, nil
}

// Tier classifies current conditions. With no samples it reports the
// most conservative tier.
func (a *Advisor) Tier() Tier {
	avg := a.average()
	switch {
	case avg >= a.cfg.FastBps:
		return TierFast
	case avg >= a.cfg.ModerateBps:
		return TierModerate
	default:
		return TierSlow
	}
}

// Stable reports whether the recent window varies little enough to
// trust the tier. Fewer than three samples is never stable.
func (a *Advisor) Stable() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.samples) < 3 {
		return false
	}
	mean, stddev := meanStddev(a.samples)
	if mean == 0 {
		return false
	}
	return stddev/mean <= a.cfg.MaxCoV
}

// Snapshot returns the current report.
func (a *Advisor) Snapshot() Report {
	a.mu.Lock()
	n := len(a.samples)
	rtt := a.lastRTT
	a.mu.Unlock()

	return Report{
		Tier:          a.Tier(),
		Stable:        a.Stable(),
		AvgThroughput: a.average(),
		LastRTT:       rtt,
		Samples:       n,
	}
}

func (a *Advisor) average() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.samples) == 0 {
		return 0
	}
	mean, _ := meanStddev(a.samples)
	return mean
}

func meanStddev(samples []Sample) (mean, stddev float64) {
	for _, s := range samples {
		mean += s.Throughput
	}
	mean /= float64(len(samples))

	var variance float64
	for _, s := range samples {
		d := s.Throughput - mean
		variance += d * d
	}
	variance /= float64(len(samples))
	return mean, math.Sqrt(variance)
}
