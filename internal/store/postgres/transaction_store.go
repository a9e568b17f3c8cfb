package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alphadeck/papertrade/internal/domain"
)

// TransactionStore implements domain.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *pgxpool.Pool
}

// NewTransactionStore creates a new TransactionStore backed by the given
// connection pool.
func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

const txSelectCols = `id, user_id, type, amount, status, created_at, updated_at`

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func scanTransactionRows(rows pgx.Rows) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// Create inserts a pending transaction request.
func (s *TransactionStore) Create(ctx context.Context, tx domain.Transaction) (domain.Transaction, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO transactions (user_id, type, amount, status)
		VALUES ($1, $2, $3, $4)
		RETURNING `+txSelectCols,
		tx.UserID, tx.Type, tx.Amount, tx.Status,
	)

	created, err := scanTransaction(row)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("postgres: create transaction: %w", err)
	}
	return created, nil
}

// GetByID returns a transaction by primary key.
func (s *TransactionStore) GetByID(ctx context.Context, id int64) (domain.Transaction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+txSelectCols+` FROM transactions WHERE id = $1`, id)

	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Transaction{}, domain.ErrNotFound
		}
		return domain.Transaction{}, fmt.Errorf("postgres: get transaction %d: %w", id, err)
	}
	return t, nil
}

// ListByUser returns a user's transactions, newest first.
func (s *TransactionStore) ListByUser(ctx context.Context, userID int64, opts domain.ListOpts) ([]domain.Transaction, error) {
	query := `SELECT ` + txSelectCols + ` FROM transactions WHERE user_id = $1 ORDER BY created_at DESC`
	args := []any{userID}
	argIdx := 2

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions by user: %w", err)
	}
	defer rows.Close()

	txs, err := scanTransactionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan transactions by user: %w", err)
	}
	return txs, nil
}

// ListPending returns unresolved transactions for the admin approval
// queue, oldest first.
func (s *TransactionStore) ListPending(ctx context.Context, opts domain.ListOpts) ([]domain.Transaction, error) {
	query := `SELECT ` + txSelectCols + ` FROM transactions WHERE status = 'pending' ORDER BY created_at ASC`
	args := []any{}
	argIdx := 1

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pending transactions: %w", err)
	}
	defer rows.Close()

	txs, err := scanTransactionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan pending transactions: %w", err)
	}
	return txs, nil
}

// SetStatus transitions a pending transaction to approved or rejected.
// Resolving an already-resolved transaction fails so the coin delta is
// never applied twice.
func (s *TransactionStore) SetStatus(ctx context.Context, id int64, status domain.TransactionStatus) (domain.Transaction, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE transactions SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+txSelectCols,
		id, status,
	)

	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := s.GetByID(ctx, id); getErr != nil {
				return domain.Transaction{}, getErr
			}
			return domain.Transaction{}, fmt.Errorf("postgres: transaction %d already resolved: %w", id, domain.ErrAlreadyExists)
		}
		return domain.Transaction{}, fmt.Errorf("postgres: set transaction %d status: %w", id, err)
	}
	return t, nil
}

// ListBefore returns resolved transactions older than the given time (for
// archiving). Pending requests are never archived out from under an admin.
func (s *TransactionStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+txSelectCols+` FROM transactions
		WHERE created_at < $1 AND status <> 'pending'
		ORDER BY created_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions before: %w", err)
	}
	defer rows.Close()
	return scanTransactionRows(rows)
}

// DeleteBefore deletes resolved transactions older than the given time.
// Returns the number deleted.
func (s *TransactionStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM transactions WHERE created_at < $1 AND status <> 'pending'`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete transactions before: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.TransactionStore = (*TransactionStore)(nil)
