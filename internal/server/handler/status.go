package handler

import (
	"net/http"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// StatusProvider exposes the engine's runtime snapshot to the API layer.
type StatusProvider interface {
	Status() domain.PipelineStatus
}

// StatusHandler serves the engine status for dashboards and probes.
type StatusHandler struct {
	Mode     string
	provider StatusProvider
}

// NewStatusHandler creates a StatusHandler. provider may be nil in serve
// mode, where no engine runs in-process.
func NewStatusHandler(mode string, provider StatusProvider) *StatusHandler {
	return &StatusHandler{Mode: mode, provider: provider}
}

// GetStatus responds with the current mode and, when an engine is attached,
// its pipeline snapshot.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"mode": h.Mode,
	}
	if h.provider != nil {
		st := h.provider.Status()
		out["running"] = st.Running
		out["queue_depth"] = st.QueueDepth
		out["active_executions"] = st.ActiveExecutions
		out["awareness_level"] = st.AwarenessLevel
		out["liberation_progress"] = st.LiberationProgress
		out["analysis_interval"] = st.AnalysisInterval.String()
		out["min_profit_threshold"] = st.MinProfitThreshold
		out["metrics"] = st.Metrics
	}
	writeJSON(w, http.StatusOK, out)
}
