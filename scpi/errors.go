package scpi

import (
	"errors"
	"fmt"
)

// ErrInvalidReply indicates that a reply tokenized but is semantically invalid
// for the type the command expects.
var ErrInvalidReply = errors.New("scpi: invalid reply")

// ParseError describes a reply that could not be decoded into the expected
// typed value. It carries the offending raw text for debugging and matches
// ErrInvalidReply under errors.Is.
type ParseError struct {
	// Raw is the reply text as received, terminator stripped.
	Raw string
	// Want names the expected form, e.g. "float" or "identity".
	Want string
	// Cause is the underlying decode error, if any.
	Cause error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("scpi: cannot parse %q as %s: %v", e.Raw, e.Want, e.Cause)
	}

	return fmt.Sprintf("scpi: cannot parse %q as %s", e.Raw, e.Want)
}

func (e *ParseError) Unwrap() error {
	return ErrInvalidReply
}

func newParseError(raw, want string, cause error) *ParseError {
	return &ParseError{Raw: raw, Want: want, Cause: cause}
}
