package handler

import (
	"log/slog"
	"net/http"

	"github.com/alphadeck/papertrade/internal/domain"
	"github.com/alphadeck/papertrade/internal/server/middleware"
	"github.com/alphadeck/papertrade/internal/service"
)

// TradeHandler serves trade execution and history for the authenticated
// user.
type TradeHandler struct {
	trades *service.TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(trades *service.TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{trades: trades, logger: logger}
}

type tradeRequest struct {
	Instrument string  `json:"instrument_key"`
	Action     string  `json:"action"`
	Quantity   int64   `json:"quantity"`
	Price      float64 `json:"price"`
}

// Execute settles a buy or sell for the authenticated user.
// POST /api/trades
func (h *TradeHandler) Execute(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	var req tradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	trade, err := h.trades.Execute(r.Context(), service.TradeRequest{
		UserID:     user.ID,
		Instrument: domain.InstrumentKey(req.Instrument),
		Action:     domain.TradeAction(req.Action),
		Quantity:   req.Quantity,
		Price:      req.Price,
	})
	if err != nil {
		writeDomainError(w, logHandler(h.logger, "trade.execute"), err)
		return
	}
	writeJSON(w, http.StatusCreated, trade)
}

// List returns the authenticated user's trade history, newest first.
// GET /api/trades
func (h *TradeHandler) List(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	trades, err := h.trades.ListByUser(r.Context(), user.ID, parseListOpts(r))
	if err != nil {
		writeDomainError(w, logHandler(h.logger, "trade.list"), err)
		return
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": trades})
}
