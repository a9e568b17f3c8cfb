package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/alphadeck/papertrade/internal/domain"
)

// In-memory store fakes for service tests. They implement just enough of
// the domain interfaces for the paths under test and are not safe for
// concurrent use.

type fakeUserStore struct {
	nextID int64
	users  map[int64]domain.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{nextID: 1, users: map[int64]domain.User{}}
}

func (f *fakeUserStore) Create(_ context.Context, u domain.User) (domain.User, error) {
	for _, existing := range f.users {
		if existing.Username == u.Username {
			return domain.User{}, domain.ErrAlreadyExists
		}
	}
	u.ID = f.nextID
	f.nextID++
	u.CreatedAt = time.Now()
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id int64) (domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserStore) GetByUsername(_ context.Context, username string) (domain.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (f *fakeUserStore) List(_ context.Context, _ domain.ListOpts) ([]domain.User, error) {
	var out []domain.User
	for _, u := range f.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeUserStore) AdjustCoins(_ context.Context, id int64, delta float64) (domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	if u.Coins+delta < 0 {
		return domain.User{}, domain.ErrInsufficientFunds
	}
	u.Coins += delta
	f.users[id] = u
	return u, nil
}

func (f *fakeUserStore) UpdateRole(_ context.Context, id int64, role domain.Role) error {
	u, ok := f.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Role = role
	f.users[id] = u
	return nil
}

func (f *fakeUserStore) Delete(_ context.Context, id int64) error {
	if _, ok := f.users[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

type fakeTradeStore struct {
	trades    []domain.Trade
	insertErr error
}

func (f *fakeTradeStore) Insert(_ context.Context, t domain.Trade) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.trades = append(f.trades, t)
	return nil
}

func (f *fakeTradeStore) ListByUser(_ context.Context, userID int64, _ domain.ListOpts) ([]domain.Trade, error) {
	var out []domain.Trade
	for _, t := range f.trades {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTradeStore) ListAll(_ context.Context, _ domain.ListOpts) ([]domain.Trade, error) {
	return f.trades, nil
}

func (f *fakeTradeStore) ListBefore(_ context.Context, before time.Time) ([]domain.Trade, error) {
	var out []domain.Trade
	for _, t := range f.trades {
		if t.Timestamp.Before(before) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTradeStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	var kept []domain.Trade
	var deleted int64
	for _, t := range f.trades {
		if t.Timestamp.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, t)
	}
	f.trades = kept
	return deleted, nil
}

type fakeTransactionStore struct {
	nextID       int64
	transactions map[int64]domain.Transaction
}

func newFakeTransactionStore() *fakeTransactionStore {
	return &fakeTransactionStore{nextID: 1, transactions: map[int64]domain.Transaction{}}
}

func (f *fakeTransactionStore) Create(_ context.Context, tx domain.Transaction) (domain.Transaction, error) {
	tx.ID = f.nextID
	f.nextID++
	tx.CreatedAt = time.Now()
	tx.UpdatedAt = tx.CreatedAt
	f.transactions[tx.ID] = tx
	return tx, nil
}

func (f *fakeTransactionStore) GetByID(_ context.Context, id int64) (domain.Transaction, error) {
	tx, ok := f.transactions[id]
	if !ok {
		return domain.Transaction{}, domain.ErrNotFound
	}
	return tx, nil
}

func (f *fakeTransactionStore) ListByUser(_ context.Context, userID int64, _ domain.ListOpts) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, tx := range f.transactions {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeTransactionStore) ListPending(_ context.Context, _ domain.ListOpts) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, tx := range f.transactions {
		if tx.Status == domain.TransactionStatusPending {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTransactionStore) SetStatus(_ context.Context, id int64, status domain.TransactionStatus) (domain.Transaction, error) {
	tx, ok := f.transactions[id]
	if !ok {
		return domain.Transaction{}, domain.ErrNotFound
	}
	if tx.Status != domain.TransactionStatusPending {
		return domain.Transaction{}, domain.ErrAlreadyExists
	}
	tx.Status = status
	tx.UpdatedAt = time.Now()
	f.transactions[id] = tx
	return tx, nil
}

func (f *fakeTransactionStore) ListBefore(_ context.Context, before time.Time) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, tx := range f.transactions {
		if tx.CreatedAt.Before(before) && tx.Status != domain.TransactionStatusPending {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeTransactionStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	var deleted int64
	for id, tx := range f.transactions {
		if tx.CreatedAt.Before(before) && tx.Status != domain.TransactionStatusPending {
			delete(f.transactions, id)
			deleted++
		}
	}
	return deleted, nil
}

type fakeSessionStore struct {
	sessions map[string]int64
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]int64{}}
}

func (f *fakeSessionStore) Create(_ context.Context, sessionID string, userID int64, _ time.Duration) error {
	f.sessions[sessionID] = userID
	return nil
}

func (f *fakeSessionStore) Lookup(_ context.Context, sessionID string) (int64, error) {
	userID, ok := f.sessions[sessionID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return userID, nil
}

func (f *fakeSessionStore) Destroy(_ context.Context, sessionID string) error {
	delete(f.sessions, sessionID)
	return nil
}

// fakeRateLimiter denies once remaining hits zero.
type fakeRateLimiter struct {
	remaining int
	err       error
}

func (f *fakeRateLimiter) Allow(_ context.Context, _ string, _ int, _ time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.remaining <= 0 {
		return false, nil
	}
	f.remaining--
	return true, nil
}

// fakeGateway serves scripted quote data and records call counts.
type fakeGateway struct {
	quotes map[domain.InstrumentKey]domain.Quote
	ohlc   map[domain.InstrumentKey]domain.OHLCQuote
	ltp    map[domain.InstrumentKey]float64
	err    error

	quoteCalls int
	ohlcCalls  int
	ltpCalls   int
}

func (f *fakeGateway) GetQuotes(_ context.Context, keys []domain.InstrumentKey) (map[domain.InstrumentKey]domain.Quote, error) {
	f.quoteCalls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[domain.InstrumentKey]domain.Quote)
	for _, k := range keys {
		if q, ok := f.quotes[k]; ok {
			out[k] = q
		}
	}
	return out, nil
}

func (f *fakeGateway) GetOHLC(_ context.Context, keys []domain.InstrumentKey) (map[domain.InstrumentKey]domain.OHLCQuote, error) {
	f.ohlcCalls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[domain.InstrumentKey]domain.OHLCQuote)
	for _, k := range keys {
		if q, ok := f.ohlc[k]; ok {
			out[k] = q
		}
	}
	return out, nil
}

func (f *fakeGateway) GetLTP(_ context.Context, keys []domain.InstrumentKey) (map[domain.InstrumentKey]float64, error) {
	f.ltpCalls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[domain.InstrumentKey]float64)
	for _, k := range keys {
		if p, ok := f.ltp[k]; ok {
			out[k] = p
		}
	}
	return out, nil
}

var errStoreDown = fmt.Errorf("store down")
