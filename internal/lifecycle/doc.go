// Package lifecycle owns the creation and destruction of transient host
// resources used during a long-running ingest session: scratch files,
// child processes and cancellation scopes.
//
// Every other pipeline component acquires these resources through a
// Tracker and releases them through it on every exit path. Release is
// idempotent; a handle released twice, or one the tracker has never seen,
// is a no-op. At session teardown Shutdown revokes everything still
// tracked, so a session that processes hundreds of files cannot leak
// scratch files or orphan helper processes.
package lifecycle
