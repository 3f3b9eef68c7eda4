// Package retrieval narrows similarity-ranked index results by structured
// metadata: section category and step-number range.
package retrieval

import (
	"errors"
	"fmt"
)

// ErrInvalidTopK is wrapped by a RetrievalError when top_k is not positive.
var ErrInvalidTopK = errors.New("top_k must be positive")

// RetrievalError reports a failed query with enough context to log and
// retry it. Zero matches is never a RetrievalError.
type RetrievalError struct {
	Query string
	TopK  int
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed for query %q (top_k=%d): %v", e.Query, e.TopK, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}
