package fetch

import "errors"

var (
	// ErrNotFound means the source has no document at the URL. Normal
	// for some countries; never retried.
	ErrNotFound = errors.New("fetch: resource not found")

	// ErrClientError covers non-404 4xx responses; never retried.
	ErrClientError = errors.New("fetch: client error")

	// ErrServerError covers 5xx responses after retries were exhausted.
	ErrServerError = errors.New("fetch: server error")

	// ErrInvalidPayload means the body parsed as JSON but does not
	// carry the expected page-data shape.
	ErrInvalidPayload = errors.New("fetch: invalid payload structure")
)
