package postgres

import "errors"

var (
	// ErrDSNRequired is returned when Open is called without a DSN.
	ErrDSNRequired = errors.New("postgres DSN required")

	// ErrUnknownDriver is returned for an unsupported driver name.
	ErrUnknownDriver = errors.New("unknown postgres driver")
)
