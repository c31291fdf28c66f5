package api

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"flowscope/internal/logs"
	"flowscope/internal/store"
)

const defaultLogLines = 100

/* ---------------- GET /healthz ---------------- */

type healthResponse struct {
	Status string      `json:"status"`
	Store  store.Stats `json:"store"`
}

func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Store: stats})
}

/* ---------------- GET /metrics ---------------- */

func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	if h.metrics == nil {
		writeJSON(w, http.StatusOK, map[string]int64{})
		return
	}
	writeJSON(w, http.StatusOK, h.metrics.Snapshot())
}

/* ---------------- GET /admin/logs?n=N ---------------- */

func (h *Handler) GetLogs(w http.ResponseWriter, r *http.Request) {
	n := defaultLogLines
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Message: "Invalid log count"})
			return
		}
		n = v
	}

	if h.ring == nil {
		writeJSON(w, http.StatusOK, []logs.Entry{})
		return
	}
	writeJSON(w, http.StatusOK, h.ring.GetLast(n))
}
