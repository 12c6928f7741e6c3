package rangecoder

import "errors"

var (
	// ErrInvalidTable is returned when a table cannot be constructed
	ErrInvalidTable = errors.New("invalid frequency table")

	// ErrSymbolRange is returned when a symbol index lies outside the alphabet
	ErrSymbolRange = errors.New("symbol outside alphabet")

	// ErrTableInvariant is returned when a table fails validation
	ErrTableInvariant = errors.New("frequency table invariant violated")

	// ErrStreamExhausted is returned when a decode is attempted after every
	// input bit has been consumed. The coder embeds no symbol count, so this is
	// the only end-of-stream signal it can give.
	ErrStreamExhausted = errors.New("stream exhausted")

	// ErrMalformed is returned when the code value maps outside the table
	ErrMalformed = errors.New("malformed stream")

	// ErrRangeCollapsed is returned when the coding interval becomes empty.
	// It cannot happen while the table total stays within MaxFrequency.
	ErrRangeCollapsed = errors.New("coding range collapsed")

	// ErrFinished is returned when an encoder is used after Finish
	ErrFinished = errors.New("encoder already finished")
)
