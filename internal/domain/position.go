package domain

// Position is a holding reconstructed from a user's completed trade
// history: buys add to quantity and investment, sells subtract, and the
// average price is recomputed after each fold step. Positions with
// quantity <= 0 are excluded from current-holdings views.
type Position struct {
	Instrument      InstrumentKey `json:"instrument_key"`
	Quantity        int64         `json:"quantity"`
	AveragePrice    float64       `json:"average_price"`
	TotalInvestment float64       `json:"total_investment"`
	TradeCount      int           `json:"trade_count"`
}

// ValuedPosition is a Position enriched with a resolved current price and
// the derived value and profit/loss figures.
type ValuedPosition struct {
	Position
	CurrentPrice float64 `json:"current_price"`
	CurrentValue float64 `json:"current_value"`
	PnL          float64 `json:"pnl"`
	PnLPercent   float64 `json:"pnl_percent"`
}

// PortfolioSummary aggregates value and profit/loss over positions with
// positive quantity only; closed-out positions never contribute to totals.
type PortfolioSummary struct {
	TotalInvestment   float64 `json:"total_investment"`
	TotalCurrentValue float64 `json:"total_current_value"`
	TotalPnL          float64 `json:"total_pnl"`
	TotalPnLPercent   float64 `json:"total_pnl_percent"`
	HoldingCount      int     `json:"holding_count"`
}
