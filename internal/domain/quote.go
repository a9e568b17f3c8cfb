package domain

import "time"

// OHLC carries the session open/high/low/close reference prices.
type OHLC struct {
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// DepthItem is a single level of the order book depth.
type DepthItem struct {
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
	Orders   int64   `json:"orders"`
}

// Depth is the five-level market depth on both sides of the book.
type Depth struct {
	Buy  []DepthItem `json:"buy"`
	Sell []DepthItem `json:"sell"`
}

// Quote is an immutable point-in-time snapshot for one instrument, built
// from the raw broker payload at ingestion. A new snapshot replaces the
// previous one in the cache; snapshots are never mutated in place.
type Quote struct {
	Instrument        InstrumentKey `json:"instrument_key"`
	LastPrice         float64       `json:"last_price"`
	LastQuantity      int64         `json:"last_quantity"`
	AveragePrice      float64       `json:"average_price"`
	Volume            int64         `json:"volume"`
	BuyQuantity       int64         `json:"buy_quantity"`
	SellQuantity      int64         `json:"sell_quantity"`
	OHLC              OHLC          `json:"ohlc"`
	NetChange         float64       `json:"net_change"`
	ChangePercent     float64       `json:"change_percent"`
	OI                float64       `json:"oi"`
	OIDayHigh         float64       `json:"oi_day_high"`
	OIDayLow          float64       `json:"oi_day_low"`
	LowerCircuitLimit float64       `json:"lower_circuit_limit"`
	UpperCircuitLimit float64       `json:"upper_circuit_limit"`
	Depth             Depth         `json:"depth"`
	LastTradeTime     time.Time     `json:"last_trade_time"`
	Timestamp         time.Time     `json:"timestamp"`
}

// LTP is the last traded price for one instrument.
type LTP struct {
	Instrument InstrumentKey `json:"instrument_key"`
	LastPrice  float64       `json:"last_price"`
}

// OHLCQuote is the lighter OHLC-only snapshot served by the OHLC endpoint.
type OHLCQuote struct {
	Instrument InstrumentKey `json:"instrument_key"`
	LastPrice  float64       `json:"last_price"`
	OHLC       OHLC          `json:"ohlc"`
}
