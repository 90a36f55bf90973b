package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"terrarisk/internal/analysis"
)

// HealthHandler reports liveness and whether the network planner is enabled.
type HealthHandler struct {
	mode string
}

func NewHealthHandler(mode string) *HealthHandler {
	return &HealthHandler{mode: mode}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]string{"status": "ok", "mode": h.mode})
}

// RunLogHandler serves the stage journal of a run.
type RunLogHandler struct {
	journal *analysis.Journal
}

func NewRunLogHandler(journal *analysis.Journal) *RunLogHandler {
	return &RunLogHandler{journal: journal}
}

func (h *RunLogHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	runID := strings.TrimSpace(r.URL.Query().Get("run_id"))
	if runID == "" {
		http.Error(w, "run_id is required", http.StatusBadRequest)
		return
	}
	events, err := h.journal.Read(runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"run_id": runID, "events": events})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
