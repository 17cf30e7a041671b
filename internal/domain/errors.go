package domain

import "errors"

// Failure taxonomy shared by the pipeline. Per-source and per-article failures are
// matched with errors.Is and downgraded to "no result" by the orchestrator.
var (
	// ErrTransport covers network failures, timeouts and non-2xx responses.
	ErrTransport = errors.New("transport error")
	// ErrFormat means a payload did not parse as expected.
	ErrFormat = errors.New("format error")
	// ErrValidationRejected marks an image candidate refused by the validity filter.
	ErrValidationRejected = errors.New("validation rejected")
)
