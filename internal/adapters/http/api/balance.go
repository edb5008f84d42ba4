package api

import (
	"context"
	"net/http"

	"github.com/okian/backr/internal/domain/types"
)

// BalanceDependencies defines the interface for ledger balance reads.
type BalanceDependencies interface {
	Balance(ctx context.Context, partyID string) (types.Balance, error)
}

// BalanceHandler handles party balance requests.
type BalanceHandler struct {
	deps BalanceDependencies
}

// NewBalanceHandler creates a new balance handler.
func NewBalanceHandler(deps BalanceDependencies) *BalanceHandler {
	return &BalanceHandler{deps: deps}
}

// HandleGetBalance handles GET /api/parties/{party}/balance.
func (h *BalanceHandler) HandleGetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.deps.Balance(r.Context(), r.PathValue("party"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}
