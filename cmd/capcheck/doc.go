// Command capcheck probes what the current host can contribute to
// media ingestion and prints a diagnostic report.
//
// It runs the same capability probe the ingest pipeline uses at
// session start: native image decoding, usable ffmpeg encoders, the
// libvips runtime, helper subprocess isolation, and scratch-area
// writability. With -net it also measures round-trip time to the
// configured probe host and reports the resulting advisory tier.
//
// Usage:
//
//	capcheck [-net]
//
// Environment:
//
//	FFMPEG_PATH    - FFmpeg binary to probe (default: ffmpeg)
//	SCRATCH_DIR    - Scratch area candidate (default: $TMPDIR/media-ingest)
//	NET_PROBE_HOST - ICMP probe target for -net (default: 1.1.1.1)
//
// Exit status is 0 when at least one processing path is usable and 1
// when the host can only deliver originals.
package main
