package source

import "errors"

var (
	// ErrUnknownPolicy is returned when a malformed-row policy name is not recognized.
	ErrUnknownPolicy = errors.New("unknown malformed row policy")

	// ErrInvalidDelimiter is returned when the delimiter cannot separate CSV fields.
	ErrInvalidDelimiter = errors.New("invalid delimiter")

	// ErrRead is returned when the underlying input fails. Reading cannot resume after it.
	ErrRead = errors.New("reading input")

	// ErrSourceClosed is returned when reading from a closed source.
	ErrSourceClosed = errors.New("source is closed")
)
