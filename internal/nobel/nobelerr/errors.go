// Package nobelerr defines the sentinel error taxonomy shared by every stage
// of the query engine. Stage errors wrap one of these sentinels so callers
// can classify a failure with errors.Is without depending on stage-specific
// error types.
package nobelerr

import (
	"errors"
	"fmt"
)

var (
	// ErrAmbiguousIntent means the classifier found no signal above the
	// confidence floor. No downstream component is invoked.
	ErrAmbiguousIntent = errors.New("ambiguous intent")

	// ErrNoEvidence means retrieval returned zero chunks above threshold.
	// The LLM is never called in this case.
	ErrNoEvidence = errors.New("no supporting evidence")

	// ErrEmbeddingFailure means the embedding client failed after retries.
	ErrEmbeddingFailure = errors.New("embedding failure")

	// ErrStoreUnavailable means the vector store is unreachable or
	// rejected the request for connectivity/auth reasons.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrLLMFailure means the LLM provider failed after retries.
	ErrLLMFailure = errors.New("llm failure")

	// ErrInvalidFilter means a filter key is not in the allowed payload set.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrInvalidRequest means the inbound request itself is malformed.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrTimeout means the query deadline expired while a stage was in flight.
	ErrTimeout = errors.New("stage timeout")

	// ErrInternal is the catch-all for unexpected failures.
	ErrInternal = errors.New("internal error")
)

// StageError wraps a sentinel with the stage name that produced it, so the
// audit log and the engine can report where in the pipeline a query died.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Wrap associates a sentinel error with the stage that raised it.
func Wrap(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// StatusCode maps a sentinel to the HTTP-ish status class the external
// interface would report, per spec §7. The core never serves HTTP itself,
// but callers building a transport on top of engine.Service need this.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrAmbiguousIntent):
		return 200 // clarification is a normal, successful response
	case errors.Is(err, ErrNoEvidence):
		return 200 // no-evidence apology is also a normal response
	case errors.Is(err, ErrInvalidFilter), errors.Is(err, ErrInvalidRequest):
		return 400
	case errors.Is(err, ErrTimeout):
		return 504
	case errors.Is(err, ErrEmbeddingFailure), errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrLLMFailure):
		return 502
	default:
		return 500
	}
}
