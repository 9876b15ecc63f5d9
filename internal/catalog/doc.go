// Package catalog is the boundary to the metadata database.
//
// The upload queue creates a row when an original lands in storage,
// finalizes it once the processed artifacts are durable, and patches
// its status as the item moves through the state machine. Finalize is
// the atomic switch of the row's canonical path from the original to
// the processed artifact; a row must never reference artifact paths
// that were not uploaded.
//
// Two implementations are provided: SQLite for the agent's local
// catalog, and an in-memory catalog used by tests.
package catalog
