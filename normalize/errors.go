package normalize

import "errors"

var (
	// ErrLexiconRequired is returned when WithLexicon is given nil.
	ErrLexiconRequired = errors.New("lexicon required")

	// ErrCleanFailed marks a fallback item produced after cleaning blew up.
	ErrCleanFailed = errors.New("cleaning failed")

	// ErrNothingLeft marks a fallback item whose text was entirely markup.
	ErrNothingLeft = errors.New("no text left after cleaning")
)
