package handler

import (
	"log/slog"
	"net/http"

	"github.com/alphadeck/papertrade/internal/domain"
	"github.com/alphadeck/papertrade/internal/server/middleware"
	"github.com/alphadeck/papertrade/internal/service"
)

// TransactionHandler serves deposit/withdrawal requests for the
// authenticated user.
type TransactionHandler struct {
	transactions *service.TransactionService
	logger       *slog.Logger
}

// NewTransactionHandler creates a TransactionHandler.
func NewTransactionHandler(transactions *service.TransactionService, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{transactions: transactions, logger: logger}
}

type transactionRequest struct {
	Type   string  `json:"type"`
	Amount float64 `json:"amount"`
}

// Request files a pending deposit or withdrawal.
// POST /api/transactions
func (h *TransactionHandler) Request(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tx, err := h.transactions.Request(r.Context(), user.ID, domain.TransactionType(req.Type), req.Amount)
	if err != nil {
		writeDomainError(w, logHandler(h.logger, "transaction.request"), err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// List returns the authenticated user's transaction history.
// GET /api/transactions
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	txs, err := h.transactions.ListByUser(r.Context(), user.ID, parseListOpts(r))
	if err != nil {
		writeDomainError(w, logHandler(h.logger, "transaction.list"), err)
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": txs})
}
