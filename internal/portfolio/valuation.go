// Package portfolio reconstructs positions from trade history and values
// them against live and fallback prices. Everything here is a pure
// function of its inputs; valuation is recomputed from scratch on every
// streamed update and on initial load, with no hidden state.
package portfolio

import (
	"sort"

	"github.com/alphadeck/papertrade/internal/domain"
)

// PriceView is the pricing context for one valuation pass: the streamed
// last-traded prices, whether the realtime connection is currently up, and
// the REST fallback prices keyed by instrument. Fallback values are kept
// loosely typed because upstream snapshots sometimes nest the price inside
// an object; ExtractPrice normalizes them.
type PriceView struct {
	Live      map[domain.InstrumentKey]float64
	Connected bool
	Fallback  map[domain.InstrumentKey]any
}

// FoldTrades rebuilds positions from a user's completed trades, oldest
// first. A buy adds to quantity and investment; a sell removes quantity
// and its share of the cost basis, so the average price is stable across
// sells. A position folded down to zero quantity has its investment reset
// so later buys start a fresh basis.
func FoldTrades(trades []domain.Trade) []domain.Position {
	ordered := make([]domain.Trade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	byKey := make(map[domain.InstrumentKey]*domain.Position)
	var order []domain.InstrumentKey

	for _, t := range ordered {
		if t.Status != domain.TradeStatusCompleted {
			continue
		}
		pos, ok := byKey[t.Instrument]
		if !ok {
			pos = &domain.Position{Instrument: t.Instrument}
			byKey[t.Instrument] = pos
			order = append(order, t.Instrument)
		}

		switch t.Action {
		case domain.TradeActionBuy:
			pos.Quantity += t.Quantity
			pos.TotalInvestment += float64(t.Quantity) * t.Price
		case domain.TradeActionSell:
			pos.TotalInvestment -= float64(t.Quantity) * pos.AveragePrice
			pos.Quantity -= t.Quantity
		}
		pos.TradeCount++

		if pos.Quantity > 0 {
			pos.AveragePrice = pos.TotalInvestment / float64(pos.Quantity)
		} else {
			pos.Quantity = min(pos.Quantity, 0)
			pos.TotalInvestment = 0
			pos.AveragePrice = 0
		}
	}

	out := make([]domain.Position, 0, len(order))
	for _, k := range order {
		out = append(out, *byKey[k])
	}
	return out
}

// Holdings filters a position list down to current holdings: positions
// with positive quantity only.
func Holdings(positions []domain.Position) []domain.Position {
	out := make([]domain.Position, 0, len(positions))
	for _, p := range positions {
		if p.Quantity > 0 {
			out = append(out, p)
		}
	}
	return out
}

// ResolvePrice picks the current price for a position, in priority order:
// a positive streamed price while the realtime connection is up, then the
// REST fallback price, then the position's own average price so P&L is
// always defined.
func ResolvePrice(pos domain.Position, view PriceView) float64 {
	if view.Connected {
		if p, ok := view.Live[pos.Instrument]; ok && p > 0 {
			return p
		}
	}
	if raw, ok := view.Fallback[pos.Instrument]; ok {
		if p, ok := ExtractPrice(raw); ok && p > 0 {
			return p
		}
	}
	return pos.AveragePrice
}

// ExtractPrice defensively pulls a numeric price out of a loosely typed
// snapshot value: a bare number, or an object carrying a last_price or
// price field (decoded JSON arrives as map[string]any).
func ExtractPrice(v any) (float64, bool) {
	switch p := v.(type) {
	case float64:
		return p, true
	case float32:
		return float64(p), true
	case int:
		return float64(p), true
	case int64:
		return float64(p), true
	case domain.LTP:
		return p.LastPrice, true
	case domain.Quote:
		return p.LastPrice, true
	case map[string]any:
		if inner, ok := p["last_price"]; ok {
			return ExtractPrice(inner)
		}
		if inner, ok := p["price"]; ok {
			return ExtractPrice(inner)
		}
	}
	return 0, false
}

// Value computes the live figures for one position. The P&L percent is
// defined as zero when the investment is zero.
func Value(pos domain.Position, view PriceView) domain.ValuedPosition {
	price := ResolvePrice(pos, view)
	invested := pos.AveragePrice * float64(pos.Quantity)
	current := price * float64(pos.Quantity)
	pnl := current - invested

	pnlPercent := 0.0
	if invested != 0 {
		pnlPercent = pnl / invested * 100
	}

	return domain.ValuedPosition{
		Position:     pos,
		CurrentPrice: price,
		CurrentValue: current,
		PnL:          pnl,
		PnLPercent:   pnlPercent,
	}
}

// ValueAll values every position and aggregates a summary over positions
// with positive quantity; closed-out positions are valued individually
// but never contribute to the totals.
func ValueAll(positions []domain.Position, view PriceView) ([]domain.ValuedPosition, domain.PortfolioSummary) {
	valued := make([]domain.ValuedPosition, 0, len(positions))
	var summary domain.PortfolioSummary

	for _, pos := range positions {
		vp := Value(pos, view)
		valued = append(valued, vp)

		if pos.Quantity <= 0 {
			continue
		}
		summary.TotalInvestment += pos.AveragePrice * float64(pos.Quantity)
		summary.TotalCurrentValue += vp.CurrentValue
		summary.HoldingCount++
	}

	summary.TotalPnL = summary.TotalCurrentValue - summary.TotalInvestment
	if summary.TotalInvestment != 0 {
		summary.TotalPnLPercent = summary.TotalPnL / summary.TotalInvestment * 100
	}
	return valued, summary
}
