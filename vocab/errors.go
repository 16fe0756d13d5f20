package vocab

import "errors"

var (
	// ErrColumnNotFound is returned when the requested text column is not in the header.
	ErrColumnNotFound = errors.New("column not found")

	// ErrEmptyVocabulary is returned when a word list holds no words.
	ErrEmptyVocabulary = errors.New("vocabulary is empty")
)
