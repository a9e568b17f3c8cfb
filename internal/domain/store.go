package domain

import (
	"context"
	"time"
)

// ListOpts carries standard pagination and time-range filters for list
// queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// UserStore persists user accounts.
type UserStore interface {
	Create(ctx context.Context, u User) (User, error)
	GetByID(ctx context.Context, id int64) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	List(ctx context.Context, opts ListOpts) ([]User, error)
	// AdjustCoins atomically applies delta to the user's balance and
	// returns the updated user. It fails with ErrInsufficientFunds when
	// the resulting balance would be negative.
	AdjustCoins(ctx context.Context, id int64, delta float64) (User, error)
	UpdateRole(ctx context.Context, id int64, role Role) error
	Delete(ctx context.Context, id int64) error
}

// TradeStore persists simulated trades.
type TradeStore interface {
	Insert(ctx context.Context, t Trade) error
	ListByUser(ctx context.Context, userID int64, opts ListOpts) ([]Trade, error)
	ListAll(ctx context.Context, opts ListOpts) ([]Trade, error)
	ListBefore(ctx context.Context, before time.Time) ([]Trade, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// TransactionStore persists deposit/withdrawal requests.
type TransactionStore interface {
	Create(ctx context.Context, tx Transaction) (Transaction, error)
	GetByID(ctx context.Context, id int64) (Transaction, error)
	ListByUser(ctx context.Context, userID int64, opts ListOpts) ([]Transaction, error)
	ListPending(ctx context.Context, opts ListOpts) ([]Transaction, error)
	// SetStatus transitions a pending transaction; it fails with
	// ErrAlreadyExists when the transaction was already resolved.
	SetStatus(ctx context.Context, id int64, status TransactionStatus) (Transaction, error)
	ListBefore(ctx context.Context, before time.Time) ([]Transaction, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
