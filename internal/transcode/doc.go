// Package transcode normalizes raw media files into delivery-ready
// artifacts.
//
// Each transcoder is a strategy over (input, capabilities): image, video,
// audio and HEIC inputs each get their own, and the video and HEIC
// transcoders run multi-tier fallback ladders, attempting strategies in
// strict order until one succeeds. Transcoders never fail past their
// boundary; anything that goes wrong inside degrades to a nil result and
// the caller falls back to a placeholder-only deliverable.
package transcode
