package batch

import (
	"errors"
	"fmt"
)

// InvariantCode categorizes flip-list violations.
type InvariantCode string

const (
	// ErrCodeDuplicateFlip indicates two flips of one stream share a timestamp,
	// so the batch boundary between them is undefined.
	ErrCodeDuplicateFlip InvariantCode = "DUPLICATE_FLIP"

	// ErrCodeFlipGap indicates consecutive flips whose numbers are not
	// consecutive: a batch marker is missing.
	ErrCodeFlipGap InvariantCode = "FLIP_GAP"
)

// InvariantError is fatal for the reconstruction of one stream.
type InvariantError struct {
	Code     InvariantCode
	StreamID uint16
	Message  string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: stream %d: %s", e.Code, e.StreamID, e.Message)
}

// IsInvariant reports whether err is an InvariantError.
func IsInvariant(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}

// CodeOf returns the InvariantCode carried by err, or "" if err is not an
// InvariantError.
func CodeOf(err error) InvariantCode {
	var ie *InvariantError
	if errors.As(err, &ie) {
		return ie.Code
	}
	return ""
}
