package catalog

import (
	"errors"
	"fmt"
)

// DecodeErrorCode categorizes format errors.
type DecodeErrorCode string

const (
	// ErrCodeUnknownFormat indicates no format is registered for the kind or tag.
	ErrCodeUnknownFormat DecodeErrorCode = "UNKNOWN_FORMAT"

	// ErrCodeLengthMismatch indicates the input is not exactly one frame wide,
	// or a declared element count does not fit in the frame.
	ErrCodeLengthMismatch DecodeErrorCode = "LENGTH_MISMATCH"

	// ErrCodeBadMagic indicates the sanity constant at the start of the frame
	// does not match the format's magic.
	ErrCodeBadMagic DecodeErrorCode = "BAD_MAGIC"
)

// DecodeError is a per-frame format error. Format errors drop the offending
// frame; they never abort a run.
type DecodeError struct {
	Code    DecodeErrorCode
	Kind    Kind
	Message string
}

func (e *DecodeError) Error() string {
	if e.Kind != KindUnknown {
		return fmt.Sprintf("%s: %s (kind=%s)", e.Code, e.Message, e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf returns the DecodeErrorCode carried by err, or "" if err is not a
// DecodeError.
func CodeOf(err error) DecodeErrorCode {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsUnknownFormat reports whether err is an UNKNOWN_FORMAT decode error.
func IsUnknownFormat(err error) bool { return CodeOf(err) == ErrCodeUnknownFormat }

// IsLengthMismatch reports whether err is a LENGTH_MISMATCH decode error.
func IsLengthMismatch(err error) bool { return CodeOf(err) == ErrCodeLengthMismatch }

// IsBadMagic reports whether err is a BAD_MAGIC decode error.
func IsBadMagic(err error) bool { return CodeOf(err) == ErrCodeBadMagic }

func unknownFormat(kind Kind, msg string) *DecodeError {
	return &DecodeError{Code: ErrCodeUnknownFormat, Kind: kind, Message: msg}
}

func lengthMismatch(kind Kind, got, want int) *DecodeError {
	return &DecodeError{
		Code:    ErrCodeLengthMismatch,
		Kind:    kind,
		Message: fmt.Sprintf("got %d bytes, want %d", got, want),
	}
}

func badMagic(kind Kind, got, want uint16) *DecodeError {
	return &DecodeError{
		Code:    ErrCodeBadMagic,
		Kind:    kind,
		Message: fmt.Sprintf("magic 0x%04x, want 0x%04x", got, want),
	}
}
