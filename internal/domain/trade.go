package domain

import "time"

// TradeAction is the direction of a simulated order.
type TradeAction string

const (
	TradeActionBuy  TradeAction = "buy"
	TradeActionSell TradeAction = "sell"
)

// TradeStatus tracks the lifecycle of a simulated order. Orders execute
// immediately at the supplied price, so completed is the normal terminal
// state.
type TradeStatus string

const (
	TradeStatusCompleted TradeStatus = "completed"
	TradeStatusRejected  TradeStatus = "rejected"
)

// Trade is a simulated buy or sell executed against a user's coin balance.
type Trade struct {
	TradeID    string        `json:"trade_id"`
	UserID     int64         `json:"user_id"`
	Instrument InstrumentKey `json:"instrument_key"`
	Action     TradeAction   `json:"action"`
	Quantity   int64         `json:"quantity"`
	Price      float64       `json:"price"`
	Status     TradeStatus   `json:"status"`
	Timestamp  time.Time     `json:"timestamp"`
}
