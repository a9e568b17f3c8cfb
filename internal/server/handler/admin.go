package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alphadeck/papertrade/internal/domain"
	"github.com/alphadeck/papertrade/internal/service"
)

// AdminHandler serves the administration endpoints: user management, the
// transaction approval queue, the cross-user trade feed, and access to the
// cold-storage archive. Routes are guarded by the admin middleware.
type AdminHandler struct {
	users        domain.UserStore
	trades       *service.TradeService
	transactions *service.TransactionService
	archives     domain.BlobReader // nil when archival is disabled
	logger       *slog.Logger
}

// NewAdminHandler creates an AdminHandler. archives may be nil; the archive
// endpoints then report that archival is disabled.
func NewAdminHandler(users domain.UserStore, trades *service.TradeService, transactions *service.TransactionService, archives domain.BlobReader, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		users:        users,
		trades:       trades,
		transactions: transactions,
		archives:     archives,
		logger:       logger,
	}
}

// ListUsers returns all registered users.
// GET /api/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context(), parseListOpts(r))
	if err != nil {
		writeDomainError(w, logHandler(h.logger, "admin.users"), err)
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": users})
}

type adjustCoinsRequest struct {
	Delta float64 `json:"delta"`
}

// AdjustCoins applies a manual balance correction to a user.
// PUT /api/admin/users/{id}/coins
func (h *AdminHandler) AdjustCoins(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(pathParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req adjustCoinsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Delta == 0 {
		writeError(w, http.StatusBadRequest, "delta must be non-zero")
		return
	}

	user, err := h.users.AdjustCoins(r.Context(), id, req.Delta)
	if err != nil {
		writeDomainError(w, logHandler(h.logger, "admin.adjust_coins"), err)
		return
	}

	h.logger.InfoContext(r.Context(), "admin: balance adjusted",
		slog.Int64("user_id", id),
		slog.Float64("delta", req.Delta),
	)
	writeJSON(w, http.StatusOK, user)
}

// PendingTransactions returns the approval queue, oldest first.
// GET /api/admin/transactions/pending
func (h *AdminHandler) PendingTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.transactions.ListPending(r.Context(), parseListOpts(r))
	if err != nil {
		writeDomainError(w, logHandler(h.logger, "admin.pending"), err)
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": txs})
}

type resolveTransactionRequest struct {
	Action string `json:"action"`
}

// ResolveTransaction approves or rejects a pending transaction.
// PUT /api/admin/transactions/{id}
func (h *AdminHandler) ResolveTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(pathParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	var req resolveTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var tx domain.Transaction
	switch req.Action {
	case "approve":
		tx, err = h.transactions.Approve(r.Context(), id)
	case "reject":
		tx, err = h.transactions.Reject(r.Context(), id)
	default:
		writeError(w, http.StatusBadRequest, "action must be approve or reject")
		return
	}
	if err != nil {
		writeDomainError(w, logHandler(h.logger, "admin.resolve"), err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// ListTrades returns recent trades across all users.
// GET /api/admin/trades
func (h *AdminHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := h.trades.ListAll(r.Context(), parseListOpts(r))
	if err != nil {
		writeDomainError(w, logHandler(h.logger, "admin.trades"), err)
		return
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": trades})
}

// archiveFile is one object in the cold-storage listing.
type archiveFile struct {
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	LastModified string `json:"last_modified,omitempty"`
}

// ListArchives lists archived JSONL objects, optionally filtered by the
// `prefix` query parameter (e.g. "archive/trades/").
// GET /api/admin/archives
func (h *AdminHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	if h.archives == nil {
		writeError(w, http.StatusNotFound, "archival is disabled")
		return
	}

	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = "archive/"
	}

	infos, err := h.archives.List(r.Context(), prefix)
	if err != nil {
		writeDomainError(w, logHandler(h.logger, "admin.archives"), err)
		return
	}

	files := make([]archiveFile, 0, len(infos))
	for _, info := range infos {
		f := archiveFile{Path: info.Path, Size: info.Size}
		if !info.LastModified.IsZero() {
			f.LastModified = info.LastModified.UTC().Format(time.RFC3339)
		}
		files = append(files, f)
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": files})
}

// GetArchive streams one archived JSONL object back to the caller.
// GET /api/admin/archives/{path...}
func (h *AdminHandler) GetArchive(w http.ResponseWriter, r *http.Request) {
	if h.archives == nil {
		writeError(w, http.StatusNotFound, "archival is disabled")
		return
	}

	path := pathParam(r, "path")
	if path == "" || strings.Contains(path, "..") {
		writeError(w, http.StatusBadRequest, "invalid archive path")
		return
	}

	body, err := h.archives.Get(r.Context(), path)
	if err != nil {
		writeDomainError(w, logHandler(h.logger, "admin.archive_get"), err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	if _, err := io.Copy(w, body); err != nil {
		// Headers are already out; nothing left to do but log.
		h.logger.Warn("admin: archive stream interrupted",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}
