package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketPriceSample is a single observation of a pair's market price,
// produced by the periodic sampler. Samples are append-only and are the
// sole input to candle aggregation.
type MarketPriceSample struct {
	PairID    int64
	Timestamp time.Time
	Price     decimal.Decimal
}
