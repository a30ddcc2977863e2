package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dexlab-io/matchbook/internal/book"
	"github.com/dexlab-io/matchbook/internal/domain"
	"github.com/dexlab-io/matchbook/internal/market"
)

// SampleReader is the slice of the sample store the market service needs.
type SampleReader interface {
	ListByPairInRange(ctx context.Context, pairID int64, from, to time.Time) ([]domain.MarketPriceSample, error)
}

// MarketService answers market price and candle queries.
type MarketService struct {
	registry     *book.Registry
	samples      SampleReader
	defaultWidth time.Duration
}

// NewMarketService creates a new MarketService.
func NewMarketService(registry *book.Registry, samples SampleReader, defaultWidth time.Duration) *MarketService {
	return &MarketService{registry: registry, samples: samples, defaultWidth: defaultWidth}
}

// MarketPrice estimates the cost of buying one unit on the pair's book.
// Returns zero when the ask side cannot cover the probe.
func (s *MarketService) MarketPrice(pairName string) (decimal.Decimal, error) {
	b, _, err := s.registry.Get(pairName)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return b.EstimateMarketPrice(domain.SideBuy, decimal.NewFromInt(1)), nil
}

// MarketPrices estimates the market price of every registered pair.
func (s *MarketService) MarketPrices() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, pair := range s.registry.Pairs() {
		b, _, err := s.registry.Get(pair.PairName)
		if err != nil {
			continue
		}
		out[pair.PairName] = b.EstimateMarketPrice(domain.SideBuy, decimal.NewFromInt(1))
	}
	return out
}

// Candles aggregates the pair's stored samples into OHLC buckets of the
// given width; width <= 0 selects the configured default.
func (s *MarketService) Candles(ctx context.Context, pairName string, width time.Duration) ([]market.Candle, error) {
	_, pair, err := s.registry.Get(pairName)
	if err != nil {
		return nil, err
	}
	if width <= 0 {
		width = s.defaultWidth
	}

	samples, err := s.samples.ListByPairInRange(ctx, pair.ID, time.Unix(0, 0), time.Now().Add(time.Minute))
	if err != nil {
		return nil, err
	}
	return market.Aggregate(samples, width), nil
}
