// Package memory provides heap monitoring and backpressure for the
// ingest session.
//
// Transcoding holds whole artifacts in memory, so a batch of large
// files can push the process into an out-of-memory kill. The monitor
// samples heap usage against a soft limit and exposes two signals: a
// throttle hint above the high water mark, and a hard pause above the
// critical mark. The queue consults WaitIfPaused before starting each
// item, so backpressure is applied between items rather than tearing
// down work in flight.
//
// The limit comes from GOMEMLIMIT when set, or from the MEMORY_LIMIT
// environment variable (bytes, typically injected by the container
// runtime). With no limit configured all signals are permissive.
package memory
