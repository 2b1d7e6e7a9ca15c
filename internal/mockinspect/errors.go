package mockinspect

import "errors"

// Sentinel errors for the session engine. Both are recoverable, caller-facing
// conditions; the API layer surfaces them as rejected requests.
var (
	// ErrLimitExceeded is returned when the global question ceiling or a
	// topic's follow-up ceiling has been reached. The wrapping message
	// distinguishes the cause.
	ErrLimitExceeded = errors.New("mockinspect: interaction limit exceeded")

	// ErrInvalidTransition is returned for operations against a non-active
	// session, an unopened or closed topic, or an attempt to re-open a topic.
	ErrInvalidTransition = errors.New("mockinspect: invalid state transition")

	// ErrReplayMismatch is returned when an event log does not belong to the
	// session being replayed, or when a recorded hash fails verification.
	ErrReplayMismatch = errors.New("mockinspect: replay mismatch")
)
