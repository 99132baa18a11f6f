package apperror

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for the matching engine. Callers classify with errors.Is;
// wrapping keeps the original cause available through errors.Unwrap.
var (
	// ErrEmbeddingGeneration means the embedding provider failed. Retryable.
	ErrEmbeddingGeneration = errors.New("embedding generation failed")

	// ErrDimensionMismatch means a vector's dimensionality does not match the
	// configured embedding dimension. Configuration bug, never retried.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrVectorStoreUnavailable means the vector store could not be reached
	// or the query failed at the storage layer. Retryable with backoff.
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")

	// ErrTimeout means an external call exceeded its per-operation deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrReconciliationConflict means a refresh run was triggered while a
	// previous run is still active. The new trigger is a clean no-op.
	ErrReconciliationConflict = errors.New("refresh run already in progress")

	// ErrInvalidFilter means a structured filter failed validation: unknown
	// field, unknown operator, or operands that do not fit the operator.
	ErrInvalidFilter = errors.New("invalid filter")

	ErrNotFound = errors.New("not found")
)

// Classify wraps err with ErrTimeout when it stems from a context deadline,
// otherwise with the provided sentinel.
func Classify(sentinel error, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, sentinel) || errors.Is(err, ErrTimeout) {
		return err
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}
