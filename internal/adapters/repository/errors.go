package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrStatusConflict  = errors.New("backing status changed")
	ErrUnknownDriver   = errors.New("unknown store driver")
	ErrInvalidSeedFile = errors.New("invalid seed file")
)
