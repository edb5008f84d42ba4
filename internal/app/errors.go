package service

import (
	"errors"

	"github.com/okian/backr/internal/adapters/repository"
)

// Sentinel kinds for service errors.
var (
	// ErrNotFound is the store's not-found kind, re-exported for callers
	// that do not import the repository package.
	ErrNotFound = repository.ErrNotFound

	ErrInvalidState      = errors.New("backing is not in PLEDGED state")
	ErrBackpressure      = errors.New("lock queue is full")
	ErrNotStarted        = errors.New("service not started")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	errLoadPanic = errors.New("panic")
)
