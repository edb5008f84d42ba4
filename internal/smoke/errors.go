package smoke

import "errors"

// Sentinel kinds for smoke runs.
var (
	ErrUnhealthy  = errors.New("service is not healthy")
	ErrViolations = errors.New("contract violations found")
	ErrEmptySeed  = errors.New("seed contains no entities")
)
