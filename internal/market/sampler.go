package market

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dexlab-io/matchbook/internal/book"
	"github.com/dexlab-io/matchbook/internal/domain"
)

// SampleWriter is the slice of the sample store the sampler needs.
type SampleWriter interface {
	Save(ctx context.Context, sample *domain.MarketPriceSample) error
}

// Sampler periodically observes each pair's market price and appends
// a sample row. Samples feed candle aggregation; a pair whose book
// cannot cover the probe quantity is skipped for that tick.
type Sampler struct {
	interval time.Duration
	registry *book.Registry
	samples  SampleWriter
	log      *zap.Logger
}

// NewSampler creates a Sampler ticking at the given interval.
func NewSampler(interval time.Duration, registry *book.Registry, samples SampleWriter, log *zap.Logger) *Sampler {
	return &Sampler{interval: interval, registry: registry, samples: samples, log: log}
}

// Start launches the sampling goroutine. It stops when ctx is cancelled.
func (s *Sampler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				s.tick(ctx, t)
			}
		}
	}()
}

// tick samples every registered pair. A failure on one pair does not
// stop the others.
func (s *Sampler) tick(ctx context.Context, now time.Time) {
	for _, pair := range s.registry.Pairs() {
		if err := s.samplePair(ctx, pair, now); err != nil {
			s.log.Warn("market price sample failed",
				zap.String("pair", pair.PairName), zap.Error(err))
		}
	}
}

func (s *Sampler) samplePair(ctx context.Context, pair *domain.Pair, now time.Time) error {
	b, _, err := s.registry.Get(pair.PairName)
	if err != nil {
		return err
	}

	price := b.EstimateMarketPrice(domain.SideBuy, decimal.NewFromInt(1))
	if !price.IsPositive() {
		// empty ask side, nothing to record this tick
		return nil
	}

	return s.samples.Save(ctx, &domain.MarketPriceSample{
		PairID:    pair.ID,
		Timestamp: now.UTC(),
		Price:     price,
	})
}
