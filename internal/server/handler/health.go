package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	relayState func() string
	clients    func() int
	logger     *slog.Logger
}

// NewHealthHandler creates a HealthHandler. relayState and clients report
// the realtime relay's state and connected websocket client count.
func NewHealthHandler(relayState func() string, clients func() int, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		relayState: relayState,
		clients:    clients,
		logger:     logger,
	}
}

// HealthCheck responds with a simple JSON status indicating the server is
// alive, plus the relay state so operators can spot a paused feed.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"relay":      h.relayState(),
		"ws_clients": h.clients(),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}
