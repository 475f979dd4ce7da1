package content

import "errors"

// Sentinel errors for content generation.
var (
	// ErrUnauthorized is returned by a Model when the provider rejects the
	// credentials. It is never retried.
	ErrUnauthorized = errors.New("model request unauthorized")

	ErrEmptyResponse = errors.New("no content generated")
	ErrUnparseable   = errors.New("failed to parse generated email: missing subject or body")
)
