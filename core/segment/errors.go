package segment

import "errors"

var (
	// ErrEmptyCode is returned when there are no bytes to segment.
	ErrEmptyCode = errors.New("empty code")
	// ErrMalformedRegion is returned when a code unit cannot be built.
	ErrMalformedRegion = errors.New("malformed code region")
)
