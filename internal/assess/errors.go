package assess

import "errors"

// Sentinel errors surfaced by assessment operations.
var (
	// ErrUnavailable means the assessment service could not be reached or
	// did not answer within the configured timeout. Nothing was written;
	// the caller may retry.
	ErrUnavailable = errors.New("assess: assessment service unavailable")

	// ErrMalformed means the service answered with content that does not
	// parse into the assessment schema. Nothing was written.
	ErrMalformed = errors.New("assess: malformed assessment response")
)
