// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across transport/service layers.
var (
	// ErrNetwork indicates the remote service could not be reached (no response).
	ErrNetwork = errors.New("network failure")

	// ErrUnauthorized indicates invalid credentials or an expired/invalid token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation indicates the remote service rejected the input (4xx).
	ErrValidation = errors.New("validation failure")

	// ErrServer indicates a 5xx or an unexpected response shape.
	ErrServer = errors.New("server failure")

	// ErrForbidden indicates the caller may not touch an entity owned by someone else.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrNoActiveEvent indicates a delete was requested with no persisted event selected.
	ErrNoActiveEvent = errors.New("no active event")

	// ErrStaleResponse indicates a remote result was dropped because newer local state superseded it.
	ErrStaleResponse = errors.New("stale response")
)
