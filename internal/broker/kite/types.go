package kite

import (
	"strings"
	"time"

	"github.com/alphadeck/papertrade/internal/domain"
)

// kiteTime parses the broker's "2006-01-02 15:04:05" timestamps, which
// arrive without a timezone and occasionally as empty strings or nulls.
type kiteTime struct {
	time.Time
}

const kiteTimeLayout = "2006-01-02 15:04:05"

func (t *kiteTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(kiteTimeLayout, s)
	if err != nil {
		// Some endpoints emit RFC3339; accept both rather than fail the
		// whole batch over one timestamp.
		parsed, err = time.Parse(time.RFC3339, s)
		if err != nil {
			t.Time = time.Time{}
			return nil
		}
	}
	t.Time = parsed
	return nil
}

// envelope is the broker's standard response wrapper.
type envelope[T any] struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	ErrorType string `json:"error_type"`
	Data      T      `json:"data"`
}

type rawOHLC struct {
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

type rawDepthItem struct {
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
	Orders   int64   `json:"orders"`
}

type rawDepth struct {
	Buy  []rawDepthItem `json:"buy"`
	Sell []rawDepthItem `json:"sell"`
}

// rawQuote mirrors the /quote payload. Nested objects are pointers because
// the broker omits them for some segments; default substitution happens
// once in toQuote, not in consumers.
type rawQuote struct {
	InstrumentToken   int64     `json:"instrument_token"`
	Timestamp         kiteTime  `json:"timestamp"`
	LastTradeTime     kiteTime  `json:"last_trade_time"`
	LastPrice         float64   `json:"last_price"`
	LastQuantity      int64     `json:"last_quantity"`
	BuyQuantity       int64     `json:"buy_quantity"`
	SellQuantity      int64     `json:"sell_quantity"`
	Volume            int64     `json:"volume"`
	AveragePrice      float64   `json:"average_price"`
	OI                float64   `json:"oi"`
	OIDayHigh         float64   `json:"oi_day_high"`
	OIDayLow          float64   `json:"oi_day_low"`
	NetChange         float64   `json:"net_change"`
	LowerCircuitLimit float64   `json:"lower_circuit_limit"`
	UpperCircuitLimit float64   `json:"upper_circuit_limit"`
	OHLC              *rawOHLC  `json:"ohlc"`
	Depth             *rawDepth `json:"depth"`
}

type rawOHLCQuote struct {
	InstrumentToken int64    `json:"instrument_token"`
	LastPrice       float64  `json:"last_price"`
	OHLC            *rawOHLC `json:"ohlc"`
}

type rawLTP struct {
	InstrumentToken int64   `json:"instrument_token"`
	LastPrice       float64 `json:"last_price"`
}

// rawSession is the /session/token exchange payload.
type rawSession struct {
	UserID      string   `json:"user_id"`
	UserName    string   `json:"user_name"`
	AccessToken string   `json:"access_token"`
	PublicToken string   `json:"public_token"`
	LoginTime   kiteTime `json:"login_time"`
}

// Session is the result of a successful token exchange.
type Session struct {
	UserID      string
	UserName    string
	AccessToken string
	PublicToken string
	LoginTime   time.Time
}

// toQuote normalizes a raw broker quote into an immutable domain snapshot,
// applying the default-substitution rules in one place: a missing or zero
// open/high/low/close falls back to the last traded price, and the change
// percent is derived from the previous close when the broker omits it.
func toQuote(key domain.InstrumentKey, r rawQuote, fetchedAt time.Time) domain.Quote {
	ohlc := domain.OHLC{}
	if r.OHLC != nil {
		ohlc = domain.OHLC(*r.OHLC)
	}
	if ohlc.Open == 0 {
		ohlc.Open = r.LastPrice
	}
	if ohlc.High == 0 {
		ohlc.High = r.LastPrice
	}
	if ohlc.Low == 0 {
		ohlc.Low = r.LastPrice
	}
	if ohlc.Close == 0 {
		ohlc.Close = r.LastPrice
	}

	changePercent := 0.0
	if ohlc.Close != 0 {
		changePercent = (r.LastPrice - ohlc.Close) / ohlc.Close * 100
	}

	netChange := r.NetChange
	if netChange == 0 {
		netChange = r.LastPrice - ohlc.Close
	}

	depth := domain.Depth{}
	if r.Depth != nil {
		depth.Buy = make([]domain.DepthItem, len(r.Depth.Buy))
		for i, d := range r.Depth.Buy {
			depth.Buy[i] = domain.DepthItem(d)
		}
		depth.Sell = make([]domain.DepthItem, len(r.Depth.Sell))
		for i, d := range r.Depth.Sell {
			depth.Sell[i] = domain.DepthItem(d)
		}
	}

	ts := r.Timestamp.Time
	if ts.IsZero() {
		ts = fetchedAt
	}

	return domain.Quote{
		Instrument:        key,
		LastPrice:         r.LastPrice,
		LastQuantity:      r.LastQuantity,
		AveragePrice:      r.AveragePrice,
		Volume:            r.Volume,
		BuyQuantity:       r.BuyQuantity,
		SellQuantity:      r.SellQuantity,
		OHLC:              ohlc,
		NetChange:         netChange,
		ChangePercent:     changePercent,
		OI:                r.OI,
		OIDayHigh:         r.OIDayHigh,
		OIDayLow:          r.OIDayLow,
		LowerCircuitLimit: r.LowerCircuitLimit,
		UpperCircuitLimit: r.UpperCircuitLimit,
		Depth:             depth,
		LastTradeTime:     r.LastTradeTime.Time,
		Timestamp:         ts,
	}
}
