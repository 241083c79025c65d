package models

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput marks input rejected at the boundary: empty text,
	// out-of-bounds annotation spans, invalid filters.
	ErrMalformedInput = errors.New("malformed input")
	// ErrEmptyQuery is returned for a blank query string. It is a malformed input.
	ErrEmptyQuery = fmt.Errorf("%w: query cannot be empty", ErrMalformedInput)
	// ErrUnavailable marks an upstream failure that survived retries. Callers may retry.
	ErrUnavailable = errors.New("upstream unavailable")
	// ErrNotFound is returned when a document is not known.
	ErrNotFound = errors.New("not found")
)
