package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	// Unknown is an unclassified failure.
	Unknown Kind = iota
	// CapabilityUnavailable means a required media primitive is not
	// supported in this environment. Not retryable on the same host.
	CapabilityUnavailable
	// DecodeFailure means the input bytes are malformed or unsupported.
	DecodeFailure
	// Timeout means an operation exceeded its deadline.
	Timeout
	// NetworkFailure means an upload, database or remote service call failed.
	NetworkFailure
	// ResourceExhaustion means a resource ceiling was hit, e.g. the input
	// exceeds the local processing size limit.
	ResourceExhaustion
)

// String returns a stable name for the kind.
func (k Kind) String() string {
	switch k {
	case CapabilityUnavailable:
		return "capability_unavailable"
	case DecodeFailure:
		return "decode_failure"
	case Timeout:
		return "timeout"
	case NetworkFailure:
		return "network_failure"
	case ResourceExhaustion:
		return "resource_exhaustion"
	}
	return "unknown"
}

// Error is a classified pipeline error.
type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "transcode.video" or
	// "storage.upload".
	Op string
	// Retryable indicates whether a fresh attempt could plausibly succeed.
	Retryable bool
	// Err is the underlying cause, if any.
	Err error
	// Message is a human-readable description surfaced to the caller.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with a message.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Retryable: defaultRetryable(kind)}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err, Retryable: defaultRetryable(kind)}
}

func defaultRetryable(kind Kind) bool {
	switch kind {
	case Timeout, NetworkFailure:
		return true
	}
	return false
}

// KindOf returns the kind of err, or Unknown if err is not a classified
// error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// IsRetryable reports whether err is a classified error marked retryable.
func IsRetryable(err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return false
}
