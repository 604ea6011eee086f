package index

import "errors"

var (
	// ErrStoreRequired is returned when no vector store is provided.
	ErrStoreRequired = errors.New("vector store required")

	// ErrStoreUnavailable is returned when every batch of a write failed.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrInvalidSearch is returned for a malformed similarity query.
	ErrInvalidSearch = errors.New("invalid search options")
)
