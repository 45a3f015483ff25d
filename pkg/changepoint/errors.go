package changepoint

import "errors"

var (
	// ErrUninitialized is returned when an operation needs a prior Fit.
	ErrUninitialized = errors.New("uninitialized data")

	// ErrSegmentLength is returned when a requested segment has no samples.
	ErrSegmentLength = errors.New("segment too short")

	// ErrArgumentRange is returned for configuration values outside their
	// valid domain.
	ErrArgumentRange = errors.New("argument out of range")
)
