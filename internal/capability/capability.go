package capability

import (
	"bufio"
	"bytes"
	"context"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"media-ingest/internal/logging"
	"media-ingest/internal/workers"

	"github.com/davidbyttow/govips/v2/vips"
	"golang.org/x/sync/errgroup"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// CapabilitySet records which media primitives are usable on this host.
// Values are computed once per Probe call and never mutated afterwards.
type CapabilitySet struct {
	// NativeDecode reports whether the in-process raster pipeline
	// (stdlib image plus x/image decoders) is usable.
	NativeDecode bool
	// RecorderCodecs is the set of usable ffmpeg encoder names.
	RecorderCodecs map[string]bool
	// VipsAvailable reports whether the libvips runtime is loaded.
	VipsAvailable bool
	// HelperAvailable reports whether isolated helper subprocesses can
	// be spawned.
	HelperAvailable bool
	// SharedScratch reports whether a shared scratch area is writable.
	SharedScratch bool
}

// HasCodec reports whether the given ffmpeg encoder is usable.
func (c CapabilitySet) HasCodec(name string) bool {
	return c.RecorderCodecs[name]
}

// Clone returns a deep copy so callers can hold the set without aliasing
// the codec map.
func (c CapabilitySet) Clone() CapabilitySet {
	out := c
	out.RecorderCodecs = make(map[string]bool, len(c.RecorderCodecs))
	for k, v := range c.RecorderCodecs {
		out.RecorderCodecs[k] = v
	}
	return out
}

// interestingEncoders is the subset of ffmpeg encoders the transcoders
// know how to drive.
var interestingEncoders = map[string]bool{
	"libx264":    true,
	"libx265":    true,
	"libvpx":     true,
	"libvpx-vp9": true,
	"libaom-av1": true,
	"aac":        true,
	"libopus":    true,
	"libwebp":    true,
	"mjpeg":      true,
	"png":        true,
}

// Prober performs feature detection. The zero value is not usable; use
// NewProber.
type Prober struct {
	ffmpegPath string
	scratchDir string
	timeout    time.Duration
}

// NewProber creates a prober. ffmpegPath may name a binary on PATH;
// scratchDir is the candidate shared scratch area.
func NewProber(ffmpegPath, scratchDir string) *Prober {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Prober{
		ffmpegPath: ffmpegPath,
		scratchDir: scratchDir,
		timeout:    5 * time.Second,
	}
}

// Probe runs all sub-probes and returns the resulting capability set.
// It never returns an error; failed sub-probes resolve to false/empty.
// Re-probing is cheap and idempotent.
func (p *Prober) Probe(ctx context.Context) CapabilitySet {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	set := CapabilitySet{RecorderCodecs: map[string]bool{}}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers.ForIO(4))

	var mu sync.Mutex

	g.Go(func() error {
		ok := probeNativeDecode()
		mu.Lock()
		set.NativeDecode = ok
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		codecs := p.probeEncoders(gctx)
		mu.Lock()
		set.RecorderCodecs = codecs
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		ok := probeVips()
		mu.Lock()
		set.VipsAvailable = ok
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		ok := p.probeHelper(gctx)
		mu.Lock()
		set.HelperAvailable = ok
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		ok := probeScratch(p.scratchDir)
		mu.Lock()
		set.SharedScratch = ok
		mu.Unlock()
		return nil
	})

	// Sub-probes never return errors; the group is used for bounded
	// concurrency only.
	_ = g.Wait()

	logging.Debug("capability probe: decode=%v codecs=%d vips=%v helper=%v scratch=%v",
		set.NativeDecode, len(set.RecorderCodecs), set.VipsAvailable, set.HelperAvailable, set.SharedScratch)

	return set
}

// tinyPNG is a 1x1 white PNG used to exercise the decode path.
var tinyPNG = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
	0x89, 0x00, 0x00, 0x00, 0x0B, 0x49, 0x44, 0x41,
	0x54, 0x78, 0xDA, 0x63, 0xF8, 0x0F, 0x04, 0x00,
	0x09, 0xFB, 0x03, 0xFD, 0x68, 0xFA, 0x1C, 0xCC,
	0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44,
	0xAE, 0x42, 0x60, 0x82,
}

func probeNativeDecode() (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	_, _, err := image.Decode(bytes.NewReader(tinyPNG))
	return err == nil
}

func (p *Prober) probeEncoders(ctx context.Context) map[string]bool {
	codecs := map[string]bool{}

	path, err := exec.LookPath(p.ffmpegPath)
	if err != nil {
		logging.Debug("capability probe: ffmpeg not found: %v", err)
		return codecs
	}

	cmd := exec.CommandContext(ctx, path, "-hide_banner", "-encoders")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		logging.Debug("capability probe: ffmpeg -encoders failed: %v", err)
		return codecs
	}

	scanner := bufio.NewScanner(&stdout)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		name := fields[1]
		if interestingEncoders[name] {
			codecs[name] = true
		}
	}
	return codecs
}

var (
	vipsOnce sync.Once
	vipsOK   bool
)

// probeVips loads the libvips runtime on first use. Startup panics if
// the shared library is missing, so the probe contains that failure.
func probeVips() bool {
	vipsOnce.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				logging.Warn("capability probe: libvips unavailable: %v", r)
				vipsOK = false
			}
		}()
		vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
			if level <= vips.LogLevelError {
				logging.Error("[vips %s] %s", domain, msg)
			}
		}, vips.LogLevelError)
		vips.Startup(&vips.Config{
			ConcurrencyLevel: workers.ForCPU(2),
			MaxCacheMem:      50 * 1024 * 1024,
			MaxCacheSize:     100,
		})
		vipsOK = true
		logging.Info("libvips initialized (version: %s)", vips.Version)
	})
	return vipsOK
}

// ShutdownVips releases the libvips runtime at session teardown.
func ShutdownVips() {
	if vipsOK {
		vips.Shutdown()
	}
}

func (p *Prober) probeHelper(ctx context.Context) bool {
	path, err := exec.LookPath(p.ffmpegPath)
	if err != nil {
		// Any spawnable binary proves helper isolation works.
		path, err = os.Executable()
		if err != nil {
			return false
		}
		cmd := exec.CommandContext(ctx, path, "-probe-helper")
		if err := cmd.Start(); err != nil {
			return false
		}
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return true
	}
	return exec.CommandContext(ctx, path, "-version").Run() == nil
}

func probeScratch(dir string) bool {
	if dir == "" {
		return false
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false
	}
	probe := filepath.Join(dir, ".scratch-probe")
	if err := os.WriteFile(probe, []byte("probe"), 0o644); err != nil {
		return false
	}
	_ = os.Remove(probe)
	return true
}
