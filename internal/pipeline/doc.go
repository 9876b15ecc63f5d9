// Package pipeline drives one file through the ordered processing
// phases: analyzing, encoding, uploading (transcoder-internal staging),
// finalizing, complete, with error reachable from any phase.
//
// The orchestrator selects a transcoder from the input's content
// category, with HEIC detected ahead of the generic image category
// because HEIC files frequently arrive with missing or wrong MIME
// types. A transcoder that degrades (returns nil) does not fail the
// file: the orchestrator synthesizes a minimal result carrying only the
// placeholder and size metadata so the file can still be delivered as
// an original-only upload. Files the agent cannot process must still be
// uploadable.
//
// Progress is reported through a callback as a phase tag, a 0-100
// percentage and a human-readable message. Phases only move forward
// within one run; a retry restarts the whole sequence.
package pipeline
