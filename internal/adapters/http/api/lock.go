package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/backr/internal/domain/types"
)

// IdempotencyKeyHeader carries the client's dedupe key for lock requests.
const IdempotencyKeyHeader = "Idempotency-Key"

// LockDependencies defines the interface for pledge-lock requests.
type LockDependencies interface {
	RequestLock(ctx context.Context, backingID, idempotencyKey string) (types.LockAck, error)
}

// LockHandler handles pledge-lock requests.
type LockHandler struct {
	deps LockDependencies
}

// NewLockHandler creates a new lock handler.
func NewLockHandler(deps LockDependencies) *LockHandler {
	return &LockHandler{deps: deps}
}

// HandlePostLock handles POST /api/backings/{id}/lock.
func (h *LockHandler) HandlePostLock(w http.ResponseWriter, r *http.Request) {
	backingID := strings.TrimSpace(r.PathValue("id"))
	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))

	ack, err := h.deps.RequestLock(r.Context(), backingID, key)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if ack.Duplicate {
		writeJSON(w, http.StatusOK, ack)
		return
	}
	writeJSON(w, http.StatusAccepted, ack)
}
