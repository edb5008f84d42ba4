package ledger

import "errors"

// Sentinel kinds for ledger errors.
var (
	// ErrUnavailable covers transport failures, 5xx answers and an open circuit.
	ErrUnavailable = errors.New("ledger unavailable")
	// ErrRejected is returned when the ledger refuses a command (4xx).
	ErrRejected = errors.New("ledger rejected command")
	// ErrInvalidResponse is returned when a ledger answer cannot be decoded.
	ErrInvalidResponse = errors.New("invalid ledger response")
)
