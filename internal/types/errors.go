package types

import (
	"fmt"
	"strings"
)

// ProviderError means an upstream embedding or generation capability was
// unreachable or returned a malformed payload. Fatal for the current request.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ContextSynthesisError means the narrative context path failed outright,
// as opposed to finding no matches. The orchestrator decides whether to
// degrade or fail.
type ContextSynthesisError struct {
	Err error
}

func (e *ContextSynthesisError) Error() string {
	return fmt.Sprintf("context synthesis: %v", e.Err)
}

func (e *ContextSynthesisError) Unwrap() error { return e.Err }

// ValidationError aggregates request-field problems. Raised at the boundary,
// before any external call.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + strings.Join(e.Messages, " ")
}

// EstimationError means the generative estimation capability returned no
// usable structured output after the context had been assembled.
type EstimationError struct {
	Reason string
	Err    error
}

func (e *EstimationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("estimation: %s: %v", e.Reason, e.Err)
	}
	return "estimation: " + e.Reason
}

func (e *EstimationError) Unwrap() error { return e.Err }

// PersistenceError wraps a history-append failure. Always caught and logged,
// never surfaced to the caller.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("history persistence: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
