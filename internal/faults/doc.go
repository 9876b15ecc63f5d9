// Package faults defines the error taxonomy shared across the ingestion
// pipeline.
//
// Every failure that crosses a component boundary is classified into one
// of a small set of kinds so that callers can decide, without string
// matching, whether an operation is worth retrying and whether the cause
// was the local environment or the network.
package faults
