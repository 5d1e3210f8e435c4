package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/msomdec/logo-feedback/internal/service"
)

// HealthHandler reports whether the comment ledger can be read.
type HealthHandler struct {
	comments *service.CommentService
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(comments *service.CommentService) *HealthHandler {
	return &HealthHandler{comments: comments}
}

type healthResponse struct {
	Status   string `json:"status"`
	Comments int    `json:"comments"`
	Error    string `json:"error,omitempty"`
}

// HandleHealthz responds with 200, {"status":"ok"} and the comment count while
// the ledger loads, and 503 with {"status":"error"} otherwise.
// GET /healthz
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	ledger, err := h.comments.Ledger(r.Context())
	if err != nil {
		slog.Error("health check", "error", err)
		writeHealth(w, http.StatusServiceUnavailable, healthResponse{Status: "error", Error: "comment ledger unavailable"})
		return
	}
	writeHealth(w, http.StatusOK, healthResponse{Status: "ok", Comments: ledger.Count()})
}

func writeHealth(w http.ResponseWriter, status int, body healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("write health response", "error", err)
	}
}
