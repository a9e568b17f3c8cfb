package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alphadeck/papertrade/internal/cache/memory"
	"github.com/alphadeck/papertrade/internal/domain"
	"github.com/alphadeck/papertrade/internal/portfolio"
)

// PriceSource provides batch last-traded prices. MarketService satisfies
// it, so portfolio lookups ride the same cache as the REST endpoints.
type PriceSource interface {
	LTP(ctx context.Context, keys []domain.InstrumentKey) (map[domain.InstrumentKey]float64, bool, error)
}

// PortfolioService reconstructs a user's positions from trade history and
// values them against current prices. Price precedence per holding:
// streamed snapshot (when the relay is delivering), then a REST last
// traded price, then the position's own average price.
type PortfolioService struct {
	trades domain.TradeStore
	prices PriceSource

	// snapshots is the per-instrument quote cache the relay keeps warm.
	snapshots *memory.TTLCache[domain.Quote]

	// streaming reports whether the relay is currently delivering.
	streaming func() bool

	logger *slog.Logger
}

// NewPortfolioService creates a PortfolioService.
func NewPortfolioService(trades domain.TradeStore, prices PriceSource, snapshots *memory.TTLCache[domain.Quote], streaming func() bool, logger *slog.Logger) *PortfolioService {
	return &PortfolioService{
		trades:    trades,
		prices:    prices,
		snapshots: snapshots,
		streaming: streaming,
		logger:    logger,
	}
}

// Positions folds the user's full trade history into positions, including
// closed-out ones.
func (s *PortfolioService) Positions(ctx context.Context, userID int64) ([]domain.Position, error) {
	trades, err := s.trades.ListByUser(ctx, userID, domain.ListOpts{})
	if err != nil {
		return nil, fmt.Errorf("portfolio_service: load history: %w", err)
	}
	return portfolio.FoldTrades(trades), nil
}

// Valued returns the user's current holdings with prices resolved, plus
// the portfolio summary. A price lookup failure degrades to average-price
// valuation instead of failing the request; the result is always awaited
// before valuation so no holding is valued against a price that has not
// arrived yet.
func (s *PortfolioService) Valued(ctx context.Context, userID int64) ([]domain.ValuedPosition, domain.PortfolioSummary, error) {
	positions, err := s.Positions(ctx, userID)
	if err != nil {
		return nil, domain.PortfolioSummary{}, err
	}

	holdings := portfolio.Holdings(positions)
	view := s.priceView(ctx, holdings)

	valued, summary := portfolio.ValueAll(positions, view)
	return valued, summary, nil
}

// priceView assembles the price precedence inputs for the given holdings.
func (s *PortfolioService) priceView(ctx context.Context, holdings []domain.Position) portfolio.PriceView {
	view := portfolio.PriceView{
		Live:      make(map[domain.InstrumentKey]float64, len(holdings)),
		Connected: s.streaming(),
		Fallback:  make(map[domain.InstrumentKey]any, len(holdings)),
	}
	if len(holdings) == 0 {
		return view
	}

	keys := make([]domain.InstrumentKey, 0, len(holdings))
	for _, pos := range holdings {
		keys = append(keys, pos.Instrument)
		if q, ok := s.snapshots.Get(string(pos.Instrument)); ok {
			view.Live[pos.Instrument] = q.LastPrice
		}
	}

	ltp, _, err := s.prices.LTP(ctx, keys)
	if err != nil {
		s.logger.WarnContext(ctx, "portfolio_service: ltp lookup failed, valuing at average price",
			slog.Int("instruments", len(keys)),
			slog.String("error", err.Error()),
		)
		return view
	}
	for key, price := range ltp {
		view.Fallback[key] = price
	}
	return view
}
