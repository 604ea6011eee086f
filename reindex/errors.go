package reindex

import "errors"

var (
	// ErrPostRepositoryRequired is returned when no post repository is given.
	ErrPostRepositoryRequired = errors.New("post repository required")

	// ErrGeneratorRequired is returned when no embedding generator is given.
	ErrGeneratorRequired = errors.New("embedding generator required")

	// ErrWriterRequired is returned when no index writer is given.
	ErrWriterRequired = errors.New("index writer required")
)
