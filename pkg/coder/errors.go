package coder

import (
	"errors"
	"fmt"

	"github.com/ssargent/biocoder/pkg/rangecoder"
	"github.com/ssargent/biocoder/pkg/temporal"
)

var (
	// ErrConfig is returned for invalid construction parameters. Fix the
	// configuration before retrying.
	ErrConfig = errors.New("config error")

	// ErrEncoding signals a violated internal invariant while encoding. It is
	// never expected in correct operation.
	ErrEncoding = errors.New("encoding error")

	// ErrTruncated is returned when the input ends before the expected number
	// of symbols was decoded. The caller may wait for more bytes or drop the unit.
	ErrTruncated = errors.New("decoding error: truncated")

	// ErrMalformed is returned when the input cannot be a valid stream.
	// Every bit prefix decodes to some symbol sequence, so corruption shows
	// only at the end of a unit: trailing bytes, a wrong termination or an
	// elision that has no memory to restore from. Treat the unit as corrupt.
	ErrMalformed = errors.New("decoding error: malformed")

	// ErrNoHistory is returned when context is queried before any frame
	ErrNoHistory = temporal.ErrNoHistory

	// ErrStreamExhausted is the range decoder's end-of-input signal
	ErrStreamExhausted = rangecoder.ErrStreamExhausted

	// ErrDirection is returned when an instance bound to one direction is
	// asked to run the other. Use one instance per direction.
	ErrDirection = errors.New("coder direction mismatch")
)

// DecodeError describes a failed decode. Kind is ErrTruncated or ErrMalformed
// and matches with errors.Is; Err is the underlying cause.
type DecodeError struct {
	Kind     error
	Position int
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v at symbol %d: %v", e.Kind, e.Position, e.Err)
}

// Is reports whether target is the error kind
func (e *DecodeError) Is(target error) bool {
	return target == e.Kind
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// classify maps a range decoder failure to the decode error taxonomy
func classify(pos int, err error) error {
	kind := ErrMalformed
	if errors.Is(err, rangecoder.ErrStreamExhausted) {
		kind = ErrTruncated
	}
	return &DecodeError{Kind: kind, Position: pos, Err: err}
}
