package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alphadeck/papertrade/internal/domain"
)

// TransactionService manages deposit and withdrawal requests. Requests
// start pending; an admin approves or rejects them, and only approval
// moves the coin balance.
type TransactionService struct {
	transactions domain.TransactionStore
	users        domain.UserStore
	logger       *slog.Logger
}

// NewTransactionService creates a TransactionService.
func NewTransactionService(transactions domain.TransactionStore, users domain.UserStore, logger *slog.Logger) *TransactionService {
	return &TransactionService{
		transactions: transactions,
		users:        users,
		logger:       logger,
	}
}

// Request files a pending deposit or withdrawal.
func (s *TransactionService) Request(ctx context.Context, userID int64, txType domain.TransactionType, amount float64) (domain.Transaction, error) {
	if txType != domain.TransactionTypeDeposit && txType != domain.TransactionTypeWithdraw {
		return domain.Transaction{}, fmt.Errorf("transaction_service: type must be deposit or withdraw: %w", domain.ErrValidation)
	}
	if amount <= 0 {
		return domain.Transaction{}, fmt.Errorf("transaction_service: amount must be positive: %w", domain.ErrValidation)
	}

	tx, err := s.transactions.Create(ctx, domain.Transaction{
		UserID: userID,
		Type:   txType,
		Amount: amount,
		Status: domain.TransactionStatusPending,
	})
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction_service: create request: %w", err)
	}

	s.logger.InfoContext(ctx, "transaction_service: request filed",
		slog.Int64("transaction_id", tx.ID),
		slog.Int64("user_id", userID),
		slog.String("type", string(txType)),
		slog.Float64("amount", amount),
	)
	return tx, nil
}

// ListByUser returns a user's transaction history, newest first.
func (s *TransactionService) ListByUser(ctx context.Context, userID int64, opts domain.ListOpts) ([]domain.Transaction, error) {
	txs, err := s.transactions.ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("transaction_service: list by user: %w", err)
	}
	return txs, nil
}

// ListPending returns the admin approval queue, oldest first.
func (s *TransactionService) ListPending(ctx context.Context, opts domain.ListOpts) ([]domain.Transaction, error) {
	txs, err := s.transactions.ListPending(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("transaction_service: list pending: %w", err)
	}
	return txs, nil
}

// Approve applies a pending transaction's coin delta and marks it
// approved. Withdrawals that exceed the current balance fail with
// ErrInsufficientFunds and leave the request pending. The balance moves
// first and is reverted if another admin resolved the request
// concurrently, so the delta is applied at most once.
func (s *TransactionService) Approve(ctx context.Context, id int64) (domain.Transaction, error) {
	tx, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction_service: load %d: %w", id, err)
	}
	if tx.Status != domain.TransactionStatusPending {
		return domain.Transaction{}, fmt.Errorf("transaction_service: transaction %d already resolved: %w", id, domain.ErrAlreadyExists)
	}

	delta := tx.Amount
	if tx.Type == domain.TransactionTypeWithdraw {
		delta = -tx.Amount
	}

	if _, err := s.users.AdjustCoins(ctx, tx.UserID, delta); err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction_service: apply delta: %w", err)
	}

	resolved, err := s.transactions.SetStatus(ctx, id, domain.TransactionStatusApproved)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Lost a race with another admin; put the coins back.
			if _, revertErr := s.users.AdjustCoins(ctx, tx.UserID, -delta); revertErr != nil {
				s.logger.ErrorContext(ctx, "transaction_service: delta revert failed",
					slog.Int64("transaction_id", id),
					slog.Float64("delta", delta),
					slog.String("error", revertErr.Error()),
				)
			}
		}
		return domain.Transaction{}, fmt.Errorf("transaction_service: approve %d: %w", id, err)
	}

	s.logger.InfoContext(ctx, "transaction_service: approved",
		slog.Int64("transaction_id", id),
		slog.Int64("user_id", tx.UserID),
		slog.Float64("delta", delta),
	)
	return resolved, nil
}

// Reject marks a pending transaction rejected without touching the
// balance.
func (s *TransactionService) Reject(ctx context.Context, id int64) (domain.Transaction, error) {
	resolved, err := s.transactions.SetStatus(ctx, id, domain.TransactionStatusRejected)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction_service: reject %d: %w", id, err)
	}

	s.logger.InfoContext(ctx, "transaction_service: rejected",
		slog.Int64("transaction_id", id),
	)
	return resolved, nil
}
