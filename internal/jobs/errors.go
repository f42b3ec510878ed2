package jobs

import "errors"

// Sentinel errors for outcomes every Store implementation must agree on.
var (
	ErrJobNotFound = errors.New("job not found or not owned by caller")
	ErrNoExecutor  = errors.New("no job executor configured")
)
