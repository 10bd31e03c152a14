package types

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is the root of every validation failure. Callers treat it
// as a programming error, not a retryable condition.
var ErrInvalidInput = errors.New("invalid input")

// Validation errors. Each wraps ErrInvalidInput.
var (
	ErrRootRequired     = fmt.Errorf("%w: root path is required", ErrInvalidInput)
	ErrBlankSegment     = fmt.Errorf("%w: segment must not be blank", ErrInvalidInput)
	ErrUnsafeSegment    = fmt.Errorf("%w: segment contains invalid path characters", ErrInvalidInput)
	ErrUnknownKind      = fmt.Errorf("%w: unknown kind", ErrInvalidInput)
	ErrUnknownImageType = fmt.Errorf("%w: invalid image type", ErrInvalidInput)
	ErrUnknownScheme    = fmt.Errorf("%w: unknown scheme", ErrInvalidInput)
	ErrBlankContent     = fmt.Errorf("%w: content must not be blank", ErrInvalidInput)
)
