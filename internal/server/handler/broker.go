package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alphadeck/papertrade/internal/broker/kite"
)

// SessionBroker is the slice of the broker client this handler needs.
type SessionBroker interface {
	GenerateSession(ctx context.Context, requestToken string) (kite.Session, error)
}

// RelayControl lets the handler resume polling after a fresh broker token
// is installed.
type RelayControl interface {
	Resume()
}

// BrokerHandler exchanges a broker request token for an access token and
// resumes the paused realtime relay.
type BrokerHandler struct {
	broker SessionBroker
	relay  RelayControl
	logger *slog.Logger
}

// NewBrokerHandler creates a BrokerHandler.
func NewBrokerHandler(broker SessionBroker, relay RelayControl, logger *slog.Logger) *BrokerHandler {
	return &BrokerHandler{broker: broker, relay: relay, logger: logger}
}

type brokerSessionRequest struct {
	RequestToken string `json:"request_token"`
}

// CreateSession performs the token exchange. On success the relay resumes
// polling with the new credentials.
// POST /api/broker/session
func (h *BrokerHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req brokerSessionRequest
	if err := decodeJSON(r, &req); err != nil || req.RequestToken == "" {
		writeError(w, http.StatusBadRequest, "request_token is required")
		return
	}

	session, err := h.broker.GenerateSession(r.Context(), req.RequestToken)
	if err != nil {
		writeDomainError(w, logHandler(h.logger, "broker.session"), err)
		return
	}

	h.relay.Resume()
	h.logger.InfoContext(r.Context(), "broker: session established, relay resumed",
		slog.String("broker_user", session.UserID),
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":    session.UserID,
		"login_time": session.LoginTime,
	})
}
