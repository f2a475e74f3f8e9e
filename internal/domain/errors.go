package domain

import (
	"errors"
	"fmt"
)

// Validation errors. Surfaced verbatim as 400-class responses.
var (
	// ErrInvalidSchema signals malformed input: ids, names, counts, dimensions.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrVectorDimMismatch signals a vector whose length differs from its context dimension.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmptyContent signals a message that is empty after trimming.
	ErrEmptyContent = errors.New("message content is empty")
	// ErrSelfMatch signals a connect request where both participants are the same user.
	ErrSelfMatch = errors.New("cannot connect a user with themselves")
	// ErrNoProfileVector signals that the requester has no embedding in the requested context.
	ErrNoProfileVector = errors.New("profile or vector not found")
	// ErrInvalidCursor signals an unparseable message cursor.
	ErrInvalidCursor = errors.New("invalid cursor")
)

// Resource errors.
var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrContextNotFound signals an unknown matching context.
	ErrContextNotFound = errors.New("matching context not found")
	// ErrSessionNotFound signals an unknown match session.
	ErrSessionNotFound = errors.New("session not found")
)

var (
	// ErrUnauthenticated signals a request without a caller identity.
	ErrUnauthenticated = errors.New("caller identity required")
	// ErrForbidden signals that the caller is not a session participant.
	// Unknown sessions map here too so that existence does not leak.
	ErrForbidden = errors.New("forbidden")
	// ErrSessionEnded signals a write into a closed or expired session.
	ErrSessionEnded = errors.New("chat has ended or expired")
	// ErrDuplicateRequest signals an idempotency key whose first request is still in flight.
	ErrDuplicateRequest = errors.New("request with this idempotency key is in progress")
	// ErrMatchingUnavailable signals that both ranking strategies failed.
	ErrMatchingUnavailable = errors.New("matching unavailable")
	// ErrAnnotationQuotaExceeded signals an exhausted annotation token budget.
	ErrAnnotationQuotaExceeded = errors.New("annotation quota exceeded")
	// ErrAnnotationProviderError signals an annotation provider failure.
	ErrAnnotationProviderError = errors.New("annotation provider error")
)

// DimMismatchError carries the expected and actual vector lengths.
type DimMismatchError struct {
	Context  string
	Expected int
	Actual   int
}

func (e *DimMismatchError) Error() string {
	return fmt.Sprintf("%s: context %q expects %d dimensions, got %d",
		ErrVectorDimMismatch.Error(), e.Context, e.Expected, e.Actual)
}

func (e *DimMismatchError) Unwrap() error { return ErrVectorDimMismatch }

// NewDimMismatch creates a dimension mismatch error.
func NewDimMismatch(context string, expected, actual int) error {
	return &DimMismatchError{Context: context, Expected: expected, Actual: actual}
}
