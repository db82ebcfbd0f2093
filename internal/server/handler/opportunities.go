package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// OpportunityScanner runs an on-demand cross-network scan for one token.
type OpportunityScanner interface {
	FindOpportunities(ctx context.Context, token string, tradeSize float64) []domain.Opportunity
}

// OpportunityHandler serves on-demand opportunity scans.
type OpportunityHandler struct {
	scanner OpportunityScanner
	logger  *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler.
func NewOpportunityHandler(scanner OpportunityScanner, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{
		scanner: scanner,
		logger:  logHandler(logger, "opportunities"),
	}
}

// Scan runs a scan for the requested token and returns the surfaced
// opportunities, best first.
// GET /api/opportunities?token=ETH&size=1.0
func (h *OpportunityHandler) Scan(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token query parameter is required")
		return
	}
	size := queryFloat(r, "size", 1.0)

	opps := h.scanner.FindOpportunities(r.Context(), token, size)

	h.logger.Debug("scan served",
		slog.String("token", token),
		slog.Int("count", len(opps)),
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"token":         token,
		"trade_size":    size,
		"opportunities": opps,
	})
}
