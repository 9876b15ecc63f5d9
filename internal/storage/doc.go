// Package storage provides the durable object store the upload queue
// lands bytes in.
//
// Two backends are provided: a local filesystem store for development
// and an S3 store for production. Both implement Store and are wrapped
// by RetryingStore, which retries transient failures with exponential
// backoff.
//
// Path layout is owned by this package: originals land under
// incoming/<id>-<name> and derived artifacts under
// processed/<itemID>/<kind>.<ext>. Uploads never overwrite unless the
// caller explicitly asks.
package storage
