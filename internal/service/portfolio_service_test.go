package service

import (
	"context"
	"testing"
	"time"

	"github.com/alphadeck/papertrade/internal/cache/memory"
	"github.com/alphadeck/papertrade/internal/domain"
)

type scriptedPrices struct {
	ltp map[domain.InstrumentKey]float64
	err error
}

func (s *scriptedPrices) LTP(_ context.Context, keys []domain.InstrumentKey) (map[domain.InstrumentKey]float64, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	out := make(map[domain.InstrumentKey]float64)
	for _, k := range keys {
		if p, ok := s.ltp[k]; ok {
			out[k] = p
		}
	}
	return out, false, nil
}

func seedTrades(trades *fakeTradeStore, userID int64) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	trades.trades = append(trades.trades,
		domain.Trade{TradeID: "t1", UserID: userID, Instrument: "NSE:INFY", Action: domain.TradeActionBuy, Quantity: 5, Price: 100, Status: domain.TradeStatusCompleted, Timestamp: base},
		domain.Trade{TradeID: "t2", UserID: userID, Instrument: "NSE:TCS", Action: domain.TradeActionBuy, Quantity: 2, Price: 200, Status: domain.TradeStatusCompleted, Timestamp: base.Add(time.Minute)},
		domain.Trade{TradeID: "t3", UserID: userID, Instrument: "NSE:TCS", Action: domain.TradeActionSell, Quantity: 2, Price: 210, Status: domain.TradeStatusCompleted, Timestamp: base.Add(2 * time.Minute)},
	)
}

func TestValuedPrefersStreamedPrice(t *testing.T) {
	ctx := context.Background()
	trades := &fakeTradeStore{}
	seedTrades(trades, 1)

	snapshots := memory.New[domain.Quote](memory.QuoteTTL)
	snapshots.Set("NSE:INFY", domain.Quote{Instrument: "NSE:INFY", LastPrice: 120})

	prices := &scriptedPrices{ltp: map[domain.InstrumentKey]float64{"NSE:INFY": 110}}
	svc := NewPortfolioService(trades, prices, snapshots, func() bool { return true }, discardLogger())

	valued, summary, err := svc.Valued(ctx, 1)
	if err != nil {
		t.Fatalf("Valued: %v", err)
	}
	// Closed-out TCS position is excluded from holdings.
	if summary.HoldingCount != 1 {
		t.Fatalf("holding count = %d, want 1", summary.HoldingCount)
	}

	var infy domain.ValuedPosition
	for _, vp := range valued {
		if vp.Instrument == "NSE:INFY" {
			infy = vp
		}
	}
	if infy.CurrentPrice != 120 {
		t.Errorf("current price = %v, want streamed 120", infy.CurrentPrice)
	}
	if infy.CurrentValue != 600 {
		t.Errorf("current value = %v, want 600", infy.CurrentValue)
	}
}

func TestValuedFallsBackToRESTWhenDisconnected(t *testing.T) {
	ctx := context.Background()
	trades := &fakeTradeStore{}
	seedTrades(trades, 1)

	snapshots := memory.New[domain.Quote](memory.QuoteTTL)
	snapshots.Set("NSE:INFY", domain.Quote{Instrument: "NSE:INFY", LastPrice: 120})

	prices := &scriptedPrices{ltp: map[domain.InstrumentKey]float64{"NSE:INFY": 110}}
	svc := NewPortfolioService(trades, prices, snapshots, func() bool { return false }, discardLogger())

	valued, _, err := svc.Valued(ctx, 1)
	if err != nil {
		t.Fatalf("Valued: %v", err)
	}
	for _, vp := range valued {
		if vp.Instrument == "NSE:INFY" && vp.CurrentPrice != 110 {
			t.Errorf("current price = %v, want REST 110", vp.CurrentPrice)
		}
	}
}

func TestValuedDegradesToAveragePrice(t *testing.T) {
	ctx := context.Background()
	trades := &fakeTradeStore{}
	seedTrades(trades, 1)

	snapshots := memory.New[domain.Quote](memory.QuoteTTL)
	prices := &scriptedPrices{err: errStoreDown}
	svc := NewPortfolioService(trades, prices, snapshots, func() bool { return false }, discardLogger())

	valued, summary, err := svc.Valued(ctx, 1)
	if err != nil {
		t.Fatalf("Valued should absorb price failures, got %v", err)
	}
	for _, vp := range valued {
		if vp.Instrument == "NSE:INFY" {
			if vp.CurrentPrice != 100 {
				t.Errorf("current price = %v, want average 100", vp.CurrentPrice)
			}
			if vp.PnL != 0 {
				t.Errorf("pnl = %v at average price, want 0", vp.PnL)
			}
		}
	}
	if summary.TotalPnL != 0 {
		t.Errorf("total pnl = %v, want 0", summary.TotalPnL)
	}
}

func TestPositionsIncludeClosed(t *testing.T) {
	ctx := context.Background()
	trades := &fakeTradeStore{}
	seedTrades(trades, 1)

	svc := NewPortfolioService(trades, &scriptedPrices{}, memory.New[domain.Quote](memory.QuoteTTL), func() bool { return false }, discardLogger())

	positions, err := svc.Positions(ctx, 1)
	if err != nil {
		t.Fatalf("Positions: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("got %d positions, want 2 (including closed)", len(positions))
	}
}
