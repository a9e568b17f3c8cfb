package handler

import (
	"log/slog"
	"net/http"

	"github.com/alphadeck/papertrade/internal/domain"
	"github.com/alphadeck/papertrade/internal/server/middleware"
	"github.com/alphadeck/papertrade/internal/service"
)

// PortfolioHandler serves valued holdings and the portfolio summary.
type PortfolioHandler struct {
	portfolio *service.PortfolioService
	logger    *slog.Logger
}

// NewPortfolioHandler creates a PortfolioHandler.
func NewPortfolioHandler(portfolio *service.PortfolioService, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{portfolio: portfolio, logger: logger}
}

// Holdings returns the authenticated user's valued positions.
// GET /api/portfolio
func (h *PortfolioHandler) Holdings(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	valued, _, err := h.portfolio.Valued(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, logHandler(h.logger, "portfolio.holdings"), err)
		return
	}
	if valued == nil {
		valued = []domain.ValuedPosition{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": valued})
}

// Summary returns the authenticated user's aggregate portfolio figures.
// GET /api/portfolio/summary
func (h *PortfolioHandler) Summary(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	_, summary, err := h.portfolio.Valued(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, logHandler(h.logger, "portfolio.summary"), err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
