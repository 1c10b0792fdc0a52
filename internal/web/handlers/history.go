package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-auth/internal/history"
)

// HistorySummarizer aggregates a user's verification history. Satisfied by
// history.Store.
type HistorySummarizer interface {
	Summarize(ctx context.Context, userID int64) (*history.Summary, error)
}

// HistoryHandler handles history read endpoints.
type HistoryHandler struct {
	store HistorySummarizer
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(store HistorySummarizer) *HistoryHandler {
	return &HistoryHandler{store: store}
}

// Summary handles GET /api/v1/users/{userID}/history. An unknown user yields
// an empty summary, not a 404; absence of history is a normal state.
func (h *HistoryHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	summary, err := h.store.Summarize(r.Context(), userID)
	if err != nil {
		log.Printf("history summary for user %d failed: %v", userID, err)
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}
