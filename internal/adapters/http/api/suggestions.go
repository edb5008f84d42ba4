package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/backr/internal/domain/types"
)

// SuggestionsDependencies defines the interface for suggestion reads.
type SuggestionsDependencies interface {
	GetSuggestions(ctx context.Context, entityID string, limit int) types.SuggestionResult
}

// SuggestionsHandler handles collaboration suggestion requests.
type SuggestionsHandler struct {
	deps SuggestionsDependencies
}

// NewSuggestionsHandler creates a new suggestions handler.
func NewSuggestionsHandler(deps SuggestionsDependencies) *SuggestionsHandler {
	return &SuggestionsHandler{deps: deps}
}

// HandleGetSuggestions handles GET /api/entities/{id}/suggestions?limit=N.
// A missing or malformed limit falls back to the service default; the
// response is always 200.
func (h *SuggestionsHandler) HandleGetSuggestions(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		limit = 0
	}
	writeJSON(w, http.StatusOK, h.deps.GetSuggestions(r.Context(), r.PathValue("id"), limit))
}
