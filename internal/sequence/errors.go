package sequence

import "errors"

// Domain errors for the sequence package.
var (
	// ErrSequenceRunning is returned when a show is requested while another
	// is still running. The request is dropped.
	ErrSequenceRunning = errors.New("sequence: already running")

	// ErrUnknownSequence is returned when no show has the requested id.
	ErrUnknownSequence = errors.New("sequence: unknown id")

	// ErrInvalidShow is returned by Validate for a malformed show.
	ErrInvalidShow = errors.New("sequence: invalid show")
)
