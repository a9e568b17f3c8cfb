package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alphadeck/papertrade/internal/domain"
	"github.com/alphadeck/papertrade/internal/portfolio"
)

// TradeService executes simulated buys and sells against a user's coin
// balance. Orders fill immediately at the submitted price; there is no
// order book.
type TradeService struct {
	trades domain.TradeStore
	users  domain.UserStore
	logger *slog.Logger

	now func() time.Time
}

// NewTradeService creates a TradeService.
func NewTradeService(trades domain.TradeStore, users domain.UserStore, logger *slog.Logger) *TradeService {
	return &TradeService{
		trades: trades,
		users:  users,
		logger: logger,
		now:    time.Now,
	}
}

// TradeRequest is a buy or sell order.
type TradeRequest struct {
	UserID     int64
	Instrument domain.InstrumentKey
	Action     domain.TradeAction
	Quantity   int64
	Price      float64
}

func (r TradeRequest) validate() error {
	if _, err := domain.ParseInstrumentKey(string(r.Instrument)); err != nil {
		return err
	}
	if r.Action != domain.TradeActionBuy && r.Action != domain.TradeActionSell {
		return fmt.Errorf("trade_service: action must be buy or sell: %w", domain.ErrValidation)
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("trade_service: quantity must be positive: %w", domain.ErrValidation)
	}
	if r.Price <= 0 {
		return fmt.Errorf("trade_service: price must be positive: %w", domain.ErrValidation)
	}
	return nil
}

// Execute settles a trade. Buys debit quantity*price coins and fail with
// ErrInsufficientFunds when the balance cannot cover it. Sells require
// the user to hold at least the requested quantity and credit the
// proceeds back to the balance.
func (s *TradeService) Execute(ctx context.Context, req TradeRequest) (domain.Trade, error) {
	if err := req.validate(); err != nil {
		return domain.Trade{}, err
	}

	notional := float64(req.Quantity) * req.Price

	switch req.Action {
	case domain.TradeActionBuy:
		if _, err := s.users.AdjustCoins(ctx, req.UserID, -notional); err != nil {
			return domain.Trade{}, fmt.Errorf("trade_service: debit buy: %w", err)
		}
	case domain.TradeActionSell:
		held, err := s.heldQuantity(ctx, req.UserID, req.Instrument)
		if err != nil {
			return domain.Trade{}, err
		}
		if held < req.Quantity {
			return domain.Trade{}, fmt.Errorf("trade_service: sell %d exceeds holding %d: %w",
				req.Quantity, held, domain.ErrValidation)
		}
		if _, err := s.users.AdjustCoins(ctx, req.UserID, notional); err != nil {
			return domain.Trade{}, fmt.Errorf("trade_service: credit sell: %w", err)
		}
	}

	trade := domain.Trade{
		TradeID:    uuid.NewString(),
		UserID:     req.UserID,
		Instrument: req.Instrument,
		Action:     req.Action,
		Quantity:   req.Quantity,
		Price:      req.Price,
		Status:     domain.TradeStatusCompleted,
		Timestamp:  s.now().UTC(),
	}

	if err := s.trades.Insert(ctx, trade); err != nil {
		// The balance already moved; undo it rather than leave the
		// account out of sync with the trade log.
		delta := notional
		if req.Action == domain.TradeActionSell {
			delta = -notional
		}
		if _, revertErr := s.users.AdjustCoins(ctx, req.UserID, delta); revertErr != nil {
			s.logger.ErrorContext(ctx, "trade_service: balance revert failed",
				slog.Int64("user_id", req.UserID),
				slog.Float64("delta", delta),
				slog.String("error", revertErr.Error()),
			)
		}
		return domain.Trade{}, fmt.Errorf("trade_service: record trade: %w", err)
	}

	s.logger.InfoContext(ctx, "trade_service: executed",
		slog.String("trade_id", trade.TradeID),
		slog.Int64("user_id", trade.UserID),
		slog.String("instrument", string(trade.Instrument)),
		slog.String("action", string(trade.Action)),
		slog.Int64("quantity", trade.Quantity),
		slog.Float64("price", trade.Price),
	)
	return trade, nil
}

// ListByUser returns a user's trade history, newest first.
func (s *TradeService) ListByUser(ctx context.Context, userID int64, opts domain.ListOpts) ([]domain.Trade, error) {
	trades, err := s.trades.ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("trade_service: list by user: %w", err)
	}
	return trades, nil
}

// ListAll returns trades across all users for the admin activity view.
func (s *TradeService) ListAll(ctx context.Context, opts domain.ListOpts) ([]domain.Trade, error) {
	trades, err := s.trades.ListAll(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("trade_service: list all: %w", err)
	}
	return trades, nil
}

// heldQuantity folds the user's full trade history and returns the net
// quantity currently held for the instrument.
func (s *TradeService) heldQuantity(ctx context.Context, userID int64, key domain.InstrumentKey) (int64, error) {
	trades, err := s.trades.ListByUser(ctx, userID, domain.ListOpts{})
	if err != nil {
		return 0, fmt.Errorf("trade_service: load history: %w", err)
	}
	for _, pos := range portfolio.FoldTrades(trades) {
		if pos.Instrument == key {
			return pos.Quantity, nil
		}
	}
	return 0, nil
}
