package liveprof

import "errors"

var (
	// ErrBackendConflict is returned by Use while a session is enabled.
	ErrBackendConflict = errors.New("cannot change backend while profiling is enabled")

	// ErrInvalidCapture is returned by End when the backend failed or produced
	// malformed data.
	ErrInvalidCapture = errors.New("invalid profile capture")

	// ErrEmptyCapture is returned by End when the capture holds no metrics.
	// It is expected for very short executions and is never logged.
	ErrEmptyCapture = errors.New("empty profile capture")

	// ErrPersistence is returned by End when the capture could not be saved.
	ErrPersistence = errors.New("failed to persist profile")

	// ErrInvalidDivider is returned by the divider setters for values below 1.
	ErrInvalidDivider = errors.New("divider must be at least 1")
)
