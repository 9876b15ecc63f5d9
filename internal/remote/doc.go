// Package remote is the HTTP client for the server-side transcode
// service, the escape hatch the HEIC ladder delegates to when local
// conversion fails.
//
// Jobs are submitted with Invoke and observed with GetJobStatus;
// PollJob wraps the status loop with an interval and an overall
// deadline. An item that delegated work must not be finalized until the
// polled job reports success.
package remote
