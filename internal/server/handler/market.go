package handler

import (
	"log/slog"
	"net/http"

	"github.com/alphadeck/papertrade/internal/domain"
	"github.com/alphadeck/papertrade/internal/service"
)

// MarketHandler serves the batch market-data endpoints and instrument
// search.
type MarketHandler struct {
	market *service.MarketService
	logger *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(market *service.MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{market: market, logger: logger}
}

// instrumentsRequest is the shared body for the batch endpoints.
type instrumentsRequest struct {
	Instruments []string `json:"instruments"`
}

func (h *MarketHandler) parseKeys(w http.ResponseWriter, r *http.Request) ([]domain.InstrumentKey, bool) {
	var req instrumentsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "body must be {\"instruments\": [...]}")
		return nil, false
	}

	keys, err := domain.ParseInstrumentKeys(req.Instruments)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return nil, false
	}
	if len(keys) == 0 {
		writeError(w, http.StatusBadRequest, "instruments must be a non-empty array")
		return nil, false
	}
	return keys, true
}

// Quotes returns full snapshots for a batch of instruments.
// POST /api/quote
func (h *MarketHandler) Quotes(w http.ResponseWriter, r *http.Request) {
	keys, ok := h.parseKeys(w, r)
	if !ok {
		return
	}

	quotes, cached, err := h.market.Quotes(r.Context(), keys)
	if err != nil {
		writeDomainError(w, logHandler(h.logger, "market.quotes"), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":   quotes,
		"cached": cached,
	})
}

// OHLC returns OHLC snapshots for a batch of instruments.
// POST /api/ohlc
func (h *MarketHandler) OHLC(w http.ResponseWriter, r *http.Request) {
	keys, ok := h.parseKeys(w, r)
	if !ok {
		return
	}

	quotes, cached, err := h.market.OHLC(r.Context(), keys)
	if err != nil {
		writeDomainError(w, logHandler(h.logger, "market.ohlc"), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":   quotes,
		"cached": cached,
	})
}

// LTP returns last traded prices for a batch of instruments.
// POST /api/ltp
func (h *MarketHandler) LTP(w http.ResponseWriter, r *http.Request) {
	keys, ok := h.parseKeys(w, r)
	if !ok {
		return
	}

	prices, cached, err := h.market.LTP(r.Context(), keys)
	if err != nil {
		writeDomainError(w, logHandler(h.logger, "market.ltp"), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":   prices,
		"cached": cached,
	})
}

// Search returns catalog instruments matching the q parameter.
// GET /api/search?q=
func (h *MarketHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q parameter is required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": h.market.Search(query),
	})
}
