package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// DecisionSource yields recent decisions from the in-memory ring.
type DecisionSource interface {
	RecentDecisions(limit int) []domain.Decision
}

// DecisionHandler serves recent decisions. When the in-process source is
// empty (or absent) it falls back to the audit store.
type DecisionHandler struct {
	source DecisionSource
	store  domain.DecisionStore
	logger *slog.Logger
}

// NewDecisionHandler creates a DecisionHandler. Either argument may be nil.
func NewDecisionHandler(source DecisionSource, store domain.DecisionStore, logger *slog.Logger) *DecisionHandler {
	return &DecisionHandler{
		source: source,
		store:  store,
		logger: logHandler(logger, "decisions"),
	}
}

// ListRecent responds with the most recent decisions, newest first.
// GET /api/decisions/recent?limit=20
func (h *DecisionHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20, 200)

	var decisions []domain.Decision
	if h.source != nil {
		decisions = h.source.RecentDecisions(limit)
	}

	if len(decisions) == 0 && h.store != nil {
		stored, err := h.store.ListRecent(r.Context(), limit)
		if err != nil {
			h.logger.Error("decision store query failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "decision store unavailable")
			return
		}
		decisions = stored
	}

	if decisions == nil {
		decisions = []domain.Decision{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"decisions": decisions,
		"count":     len(decisions),
	})
}
