package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals malformed caller input, rejected before any retrieval work.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidInput signals an unrecognized embedding input shape.
	ErrInvalidInput = errors.New("invalid input")
	// ErrModelUnavailable signals a failed embedding model initialization.
	ErrModelUnavailable = errors.New("embedding model unavailable")
	// ErrDegenerateEmbedding signals a near-zero embedding vector from a broken inference path.
	ErrDegenerateEmbedding = errors.New("degenerate embedding")
	// ErrDimMismatch signals a vector dimensionality mismatch during scoring.
	ErrDimMismatch = errors.New("vector dimension mismatch")
	// ErrRetrievalUnavailable signals that every ANN index and the scan fallback failed.
	ErrRetrievalUnavailable = errors.New("retrieval backend unavailable")
	// ErrNoRelevantContext signals zero usable candidates for a RAG question.
	ErrNoRelevantContext = errors.New("no relevant context")
	// ErrGenerationFailed signals a failed or empty generation model response.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrTimeout signals an expired caller deadline on a backend or model call.
	ErrTimeout = errors.New("timed out")
	// ErrNotFound signals a missing source entity.
	ErrNotFound = errors.New("not found")
)

// DimMismatchError wraps ErrDimMismatch with both vector lengths.
type DimMismatchError struct {
	LenA int
	LenB int
}

func (e *DimMismatchError) Error() string {
	return fmt.Sprintf("%s: %d vs %d", ErrDimMismatch.Error(), e.LenA, e.LenB)
}

func (e *DimMismatchError) Unwrap() error { return ErrDimMismatch }

// NewDimMismatch creates a dimension mismatch error for two vector lengths.
func NewDimMismatch(lenA, lenB int) error {
	return &DimMismatchError{LenA: lenA, LenB: lenB}
}
