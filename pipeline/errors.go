package pipeline

import "errors"

var (
	// ErrRunInProgress is returned when a run is requested while another is running.
	ErrRunInProgress = errors.New("pipeline run already in progress")

	// ErrAlreadyScheduled is returned by StartSchedule when a schedule is active.
	ErrAlreadyScheduled = errors.New("pipeline already scheduled")

	// ErrInvalidSchedule is returned for cron specs that do not parse.
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrInvalidRunConfig is returned when a RunConfig fails validation.
	ErrInvalidRunConfig = errors.New("invalid run config")

	ErrSourceRequired     = errors.New("source required")
	ErrNormalizerRequired = errors.New("normalizer required")
	ErrGeneratorRequired  = errors.New("embedding generator required")
	ErrWriterRequired     = errors.New("index writer required")
	ErrPostsRequired      = errors.New("post repository required")
)
