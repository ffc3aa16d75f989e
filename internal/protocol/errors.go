package protocol

import "errors"

// Sentinel errors shared across the control plane. Transport-level failures
// (ErrUnreachable, ErrTimeout) are retried by the client; supervisor-level
// failures (ErrNotFound, ErrMalformed) are returned once and never retried.
var (
	ErrNotFound    = errors.New("process not found")
	ErrMalformed   = errors.New("malformed message")
	ErrUnreachable = errors.New("daemon unreachable")
	ErrTimeout     = errors.New("request timed out")
)
