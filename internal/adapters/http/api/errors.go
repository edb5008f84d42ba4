package api

import (
	"errors"
	"net/http"

	service "github.com/okian/backr/internal/app"
)

// classify maps a service error onto an HTTP status and an error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "not_started"
	case errors.Is(err, service.ErrLedgerUnavailable):
		return http.StatusBadGateway, "ledger_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}
