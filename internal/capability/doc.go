// Package capability detects, once per session, which media primitives
// are usable on this host: the native raster pipeline, ffmpeg encoders,
// the libvips runtime, helper subprocess spawning and shared scratch
// space.
//
// Probe never fails; any individual probe error resolves the
// corresponding capability to false or empty. Results are plain data:
// transcoders receive a CapabilitySet value and branch on it, which keeps
// every fallback ladder a pure function of (input, capabilities) and
// directly unit-testable with synthetic sets.
package capability
