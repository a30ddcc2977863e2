package market

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dexlab-io/matchbook/internal/domain"
)

// Candle is one OHLC bucket of market price samples. Count is the
// number of samples that fell into the bucket.
type Candle struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Count     int             `json:"trades"`
}

// Aggregate buckets samples into candles of the given width. Buckets
// start at floor(ts/width)*width. Non-positive prices are dropped.
// Output is ascending by bucket start; empty or all-dropped input
// yields no candles.
func Aggregate(samples []domain.MarketPriceSample, width time.Duration) []Candle {
	if width <= 0 || len(samples) == 0 {
		return nil
	}

	buckets := make(map[int64][]domain.MarketPriceSample)
	for _, s := range samples {
		if !s.Price.IsPositive() {
			continue
		}
		key := s.Timestamp.UnixMilli() / width.Milliseconds() * width.Milliseconds()
		buckets[key] = append(buckets[key], s)
	}
	if len(buckets) == 0 {
		return nil
	}

	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]Candle, 0, len(keys))
	for _, k := range keys {
		points := buckets[k]
		sort.SliceStable(points, func(i, j int) bool {
			return points[i].Timestamp.Before(points[j].Timestamp)
		})

		c := Candle{
			Timestamp: time.UnixMilli(k).UTC(),
			Open:      points[0].Price,
			Close:     points[len(points)-1].Price,
			High:      points[0].Price,
			Low:       points[0].Price,
			Count:     len(points),
		}
		for _, p := range points[1:] {
			if p.Price.GreaterThan(c.High) {
				c.High = p.Price
			}
			if p.Price.LessThan(c.Low) {
				c.Low = p.Price
			}
		}
		out = append(out, c)
	}
	return out
}
