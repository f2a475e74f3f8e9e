package rendezvous

import "github.com/kailas-cloud/rendezvous/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidSchema       = domain.ErrInvalidSchema
	ErrVectorDimMismatch   = domain.ErrVectorDimMismatch
	ErrEmptyContent        = domain.ErrEmptyContent
	ErrSelfMatch           = domain.ErrSelfMatch
	ErrNoProfileVector     = domain.ErrNoProfileVector
	ErrInvalidCursor       = domain.ErrInvalidCursor
	ErrNotFound            = domain.ErrNotFound
	ErrAlreadyExists       = domain.ErrAlreadyExists
	ErrContextNotFound     = domain.ErrContextNotFound
	ErrSessionNotFound     = domain.ErrSessionNotFound
	ErrForbidden           = domain.ErrForbidden
	ErrSessionEnded        = domain.ErrSessionEnded
	ErrDuplicateRequest    = domain.ErrDuplicateRequest
	ErrMatchingUnavailable = domain.ErrMatchingUnavailable
)
