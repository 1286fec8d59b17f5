package entities

import "errors"

// Domain error taxonomy. Handlers map these to HTTP status codes; the
// aggregator swallows ErrProviderUnavailable and degrades to cached data.
var (
	// ErrUnauthorized signals a missing or expired session. Never retried.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation signals malformed client-side input, rejected before
	// any network or database call.
	ErrValidation = errors.New("validation failed")

	// ErrServer signals an account/registry service failure. The attempted
	// mutation must not be assumed to have taken effect.
	ErrServer = errors.New("server error")

	// ErrProviderUnavailable signals a failed market-data provider call
	// (timeout, non-2xx, malformed payload). Soft: callers fall back to the
	// last cached payload for that key.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrNotFound signals a missing resource (user, tracked address).
	ErrNotFound = errors.New("not found")

	// ErrEmailTaken signals a signup attempt with a registered email.
	ErrEmailTaken = errors.New("email already in use")
)
