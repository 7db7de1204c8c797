// Package kind defines the error-kind taxonomy shared by every adapter and
// pipeline in the GraphRAG core. Kinds are sentinel errors, not types:
// callers distinguish them with errors.Is, and wrap them with context via
// Wrap so the original cause stays attached for logging.
package kind

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks a caller-supplied bad argument (empty query, bad
	// promotion level, unsupported doc type). Always surfaced to the caller.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound marks a document/chunk/concept missing during a direct
	// lookup. Surfaced for direct lookups, swallowed-with-warn during
	// best-effort enrichment.
	ErrNotFound = errors.New("not found")

	// ErrUpstreamUnavailable marks the embedding service or LLM being
	// unreachable: circuit open, timed out, or network failure.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrDimensionMismatch marks a vector of the wrong length presented to
	// or received from the vector index. Fatal everywhere it occurs.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrStoreError marks a vector or graph store read/write failure.
	// Propagation is step-dependent; see the pipelines' failure tables.
	ErrStoreError = errors.New("store error")

	// ErrInternal marks an invariant violation — a bug, not an environmental
	// failure. Always fatal and must carry enough context to reproduce.
	ErrInternal = errors.New("internal error")
)

// Wrap attaches op context to a sentinel kind while keeping the underlying
// cause visible in the message and in errors.Is/errors.As chains.
func Wrap(sentinel error, op string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", op, sentinel)
	}
	return fmt.Errorf("%s: %w: %w", op, sentinel, cause)
}

// Is reports whether err (or any error it wraps) is the given sentinel kind.
func Is(err error, sentinel error) bool {
	return errors.Is(err, sentinel)
}
