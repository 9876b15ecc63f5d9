package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"media-ingest/internal/capability"
	"media-ingest/internal/netadvisor"
)

const probeTimeout = 30 * time.Second

func main() {
	measureNet := flag.Bool("net", false, "also measure network round-trip time")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	ffmpegPath := os.Getenv("FFMPEG_PATH")
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	scratchDir := os.Getenv("SCRATCH_DIR")
	if scratchDir == "" {
		scratchDir = filepath.Join(os.TempDir(), "media-ingest")
	}

	prober := capability.NewProber(ffmpegPath, scratchDir)
	set := prober.Probe(ctx)

	fmt.Println("Capability report")
	fmt.Println("-----------------")
	fmt.Printf("  Native decode:   %s\n", yesNo(set.NativeDecode))
	fmt.Printf("  libvips:         %s\n", yesNo(set.VipsAvailable))
	fmt.Printf("  Helper spawn:    %s\n", yesNo(set.HelperAvailable))
	fmt.Printf("  Shared scratch:  %s (%s)\n", yesNo(set.SharedScratch), scratchDir)

	if len(set.RecorderCodecs) == 0 {
		fmt.Printf("  Encoders:        none (%s unusable)\n", ffmpegPath)
	} else {
		names := make([]string, 0, len(set.RecorderCodecs))
		for name := range set.RecorderCodecs {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Printf("  Encoders:        %d usable\n", len(names))
		for _, name := range names {
			fmt.Printf("                   - %s\n", name)
		}
	}

	if *measureNet {
		reportNetwork(ctx)
	}

	capability.ShutdownVips()

	if !set.NativeDecode && !set.VipsAvailable && len(set.RecorderCodecs) == 0 {
		fmt.Println()
		fmt.Println("No processing path is usable; ingestion would deliver originals only.")
		os.Exit(1)
	}
}

func reportNetwork(ctx context.Context) {
	cfg := netadvisor.DefaultConfig()
	if host := os.Getenv("NET_PROBE_HOST"); host != "" {
		cfg.ProbeHost = host
	}
	advisor := netadvisor.New(cfg)

	fmt.Println()
	fmt.Println("Network report")
	fmt.Println("--------------")

	rtt, err := advisor.Measure(ctx)
	if err != nil {
		fmt.Printf("  Measurement failed: %v\n", err)
		return
	}

	fmt.Printf("  Probe host:  %s\n", cfg.ProbeHost)
	fmt.Printf("  RTT:         %v\n", rtt)
	fmt.Printf("  Tier:        %s\n", advisor.Tier())
}

func yesNo(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}
