package core

import (
	"errors"
	"fmt"

	"github.com/recallhq/recall-go/pkg/similarity"
)

// Predefined errors for common failure scenarios.
//
// Only ErrInvalidQuery ever surfaces from RetrieveContext: every other
// failure degrades one branch and the caller still receives a bundle. The
// remaining sentinels tag branch-level reasons in metadata and events.
var (
	// ErrInvalidQuery indicates an empty or non-text query. This is the
	// only fatal error; it short-circuits before any retrieval begins.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrDimensionMismatch indicates incompatible embedding dimensions.
	// Scans skip and count the offending chunk, they never abort.
	ErrDimensionMismatch = similarity.ErrDimensionMismatch

	// ErrEmbeddingUnavailable indicates the query embedding could not be
	// generated. Affected branches return empty results.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrPoolUnavailable indicates a chunk pool could not be loaded.
	// The affected branch returns empty results.
	ErrPoolUnavailable = errors.New("chunk pool unavailable")

	// ErrTimeout indicates a branch or the overall call ran out of time.
	// Partial results are accepted and the bundle is marked truncated.
	ErrTimeout = errors.New("retrieval timed out")
)

// RetrievalError wraps errors with operation context.
//
// Example:
//
//	err := &RetrievalError{Op: "RetrieveContext", Err: ErrInvalidQuery}
//	// Error() returns: "recall: RetrieveContext: invalid query"
type RetrievalError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
func (e *RetrievalError) Error() string {
	return fmt.Sprintf("recall: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is and errors.As.
func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// NewRetrievalError creates a RetrievalError wrapping the given error.
// If err is nil, returns nil, so call sites can wrap unconditionally.
func NewRetrievalError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RetrievalError{Op: op, Err: err}
}
