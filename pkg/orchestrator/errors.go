package orchestrator

import "errors"

// Failure classes. Returned errors wrap exactly one of these; check with errors.Is.
var (
	// ErrInvalidRequest means required inputs were missing. No external call was made.
	ErrInvalidRequest = errors.New("missing required fields")

	// ErrUpstream means the AI endpoint was unreachable or answered with an unparseable body.
	ErrUpstream = errors.New("upstream error")

	// ErrCache means the conversation log buffer failed.
	ErrCache = errors.New("cache error")

	// ErrPersistence means the durable write failed.
	ErrPersistence = errors.New("persistence error")
)
