package contract

import "errors"

var (
	// ErrClassification marks a failed or unparseable strategy
	// classification. Recovered locally: the dispatcher falls back to Chat.
	ErrClassification = errors.New("classification failed")

	// ErrResearchFailed is returned when every sub-query of a research
	// invocation failed or timed out. No report is produced.
	ErrResearchFailed = errors.New("all research sub-queries failed")

	// ErrSynthesis marks a failed text-generation call in a position where
	// the failure is fatal to the request.
	ErrSynthesis = errors.New("synthesis failed")

	// ErrMemoryUnavailable marks a memory operation failure in a strategy
	// that requires memory.
	ErrMemoryUnavailable = errors.New("memory store unavailable")

	// ErrServiceUnavailable marks an upstream provider rejecting or
	// failing a call.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTimeout marks an upstream call that exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrValidation marks malformed input or configuration.
	ErrValidation = errors.New("validation failed")
)
