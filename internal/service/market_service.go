package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alphadeck/papertrade/internal/cache/memory"
	"github.com/alphadeck/papertrade/internal/catalog"
	"github.com/alphadeck/papertrade/internal/domain"
)

// QuoteGateway is the slice of the broker client the market service needs.
type QuoteGateway interface {
	GetQuotes(ctx context.Context, keys []domain.InstrumentKey) (map[domain.InstrumentKey]domain.Quote, error)
	GetOHLC(ctx context.Context, keys []domain.InstrumentKey) (map[domain.InstrumentKey]domain.OHLCQuote, error)
	GetLTP(ctx context.Context, keys []domain.InstrumentKey) (map[domain.InstrumentKey]float64, error)
}

// MarketService serves batch market-data lookups with short-lived caching.
// Batch responses are cached under an order-independent key so permuted
// requests for the same instrument set share one upstream call. Full
// quote fetches also back-fill the per-instrument snapshot cache shared
// with the realtime relay.
type MarketService struct {
	gateway QuoteGateway
	catalog *catalog.Catalog

	quotes       *memory.TTLCache[domain.Quote]
	quoteBatches *memory.TTLCache[map[domain.InstrumentKey]domain.Quote]
	ohlcBatches  *memory.TTLCache[map[domain.InstrumentKey]domain.OHLCQuote]
	ltpBatches   *memory.TTLCache[map[domain.InstrumentKey]float64]

	logger *slog.Logger
}

// NewMarketService creates a MarketService. quotes is the per-instrument
// snapshot cache shared with the relay.
func NewMarketService(gateway QuoteGateway, cat *catalog.Catalog, quotes *memory.TTLCache[domain.Quote], logger *slog.Logger) *MarketService {
	return &MarketService{
		gateway:      gateway,
		catalog:      cat,
		quotes:       quotes,
		quoteBatches: memory.New[map[domain.InstrumentKey]domain.Quote](memory.QuoteTTL),
		ohlcBatches:  memory.New[map[domain.InstrumentKey]domain.OHLCQuote](memory.OHLCTTL),
		ltpBatches:   memory.New[map[domain.InstrumentKey]float64](memory.QuoteTTL),
		logger:       logger,
	}
}

// Quotes returns full snapshots for the given instruments. The boolean
// reports whether the response was served from cache.
func (s *MarketService) Quotes(ctx context.Context, keys []domain.InstrumentKey) (map[domain.InstrumentKey]domain.Quote, bool, error) {
	if len(keys) == 0 {
		return nil, false, fmt.Errorf("market_service: empty instrument list: %w", domain.ErrValidation)
	}

	batchKey := domain.BatchCacheKey(keys)
	if cached, ok := s.quoteBatches.Get(batchKey); ok {
		return cached, true, nil
	}

	quotes, err := s.gateway.GetQuotes(ctx, keys)
	if err != nil {
		return nil, false, fmt.Errorf("market_service: quotes: %w", err)
	}

	s.quoteBatches.Set(batchKey, quotes)
	for key, q := range quotes {
		s.quotes.Set(string(key), q)
	}
	return quotes, false, nil
}

// OHLC returns open/high/low/close snapshots for the given instruments.
// The boolean reports whether the response was served from cache.
func (s *MarketService) OHLC(ctx context.Context, keys []domain.InstrumentKey) (map[domain.InstrumentKey]domain.OHLCQuote, bool, error) {
	if len(keys) == 0 {
		return nil, false, fmt.Errorf("market_service: empty instrument list: %w", domain.ErrValidation)
	}

	batchKey := domain.BatchCacheKey(keys)
	if cached, ok := s.ohlcBatches.Get(batchKey); ok {
		return cached, true, nil
	}

	quotes, err := s.gateway.GetOHLC(ctx, keys)
	if err != nil {
		return nil, false, fmt.Errorf("market_service: ohlc: %w", err)
	}

	s.ohlcBatches.Set(batchKey, quotes)
	return quotes, false, nil
}

// LTP returns last traded prices for the given instruments. The boolean
// reports whether the response was served from cache.
func (s *MarketService) LTP(ctx context.Context, keys []domain.InstrumentKey) (map[domain.InstrumentKey]float64, bool, error) {
	if len(keys) == 0 {
		return nil, false, fmt.Errorf("market_service: empty instrument list: %w", domain.ErrValidation)
	}

	batchKey := domain.BatchCacheKey(keys)
	if cached, ok := s.ltpBatches.Get(batchKey); ok {
		return cached, true, nil
	}

	prices, err := s.gateway.GetLTP(ctx, keys)
	if err != nil {
		return nil, false, fmt.Errorf("market_service: ltp: %w", err)
	}

	s.ltpBatches.Set(batchKey, prices)
	return prices, false, nil
}

// searchLimit caps search responses; the catalog is small but the endpoint
// is called on every keystroke.
const searchLimit = 20

// Search returns catalog instruments matching the query.
func (s *MarketService) Search(query string) []catalog.Instrument {
	return s.catalog.Search(query, searchLimit)
}
