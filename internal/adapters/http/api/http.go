// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/backr/internal/domain/types"
)

// Service is the application surface the HTTP handlers depend on.
type Service interface {
	StatsProvider

	// GetSuggestions never fails; an unknown entity yields an empty result.
	GetSuggestions(ctx context.Context, entityID string, limit int) types.SuggestionResult
	// RequestLock queues a pledge-lock job for a backing.
	RequestLock(ctx context.Context, backingID, idempotencyKey string) (types.LockAck, error)
	// Balance reads a party's ledger balance.
	Balance(ctx context.Context, partyID string) (types.Balance, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	suggestionsHandler *SuggestionsHandler
	lockHandler        *LockHandler
	balanceHandler     *BalanceHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(svc Service) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(svc),
		suggestionsHandler: NewSuggestionsHandler(svc),
		lockHandler:        NewLockHandler(svc),
		balanceHandler:     NewBalanceHandler(svc),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", MetricsMiddleware(s.healthHandler.HandleMetrics, "metrics"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /api/entities/{id}/suggestions", MetricsMiddleware(s.suggestionsHandler.HandleGetSuggestions, "suggestions"))
	mux.HandleFunc("POST /api/backings/{id}/lock", MetricsMiddleware(s.lockHandler.HandlePostLock, "lock"))
	mux.HandleFunc("GET /api/parties/{party}/balance", MetricsMiddleware(s.balanceHandler.HandleGetBalance, "balance"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
