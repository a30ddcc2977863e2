package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dexlab-io/matchbook/internal/domain"
)

// sampleTimeLayout keeps the fractional second at fixed width so the
// stored text compares in time order. RFC3339Nano trims trailing zeros,
// which breaks lexicographic range predicates within a second.
const sampleTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SampleStore persists periodic market price observations per pair.
type SampleStore struct {
	db *sql.DB
}

// NewSampleStore creates a SampleStore over the given database.
func NewSampleStore(db *sql.DB) *SampleStore {
	return &SampleStore{db: db}
}

// Save appends one price sample.
func (s *SampleStore) Save(ctx context.Context, sample *domain.MarketPriceSample) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO market_prices (pair_id,timestamp,price) VALUES (?,?,?)
`, sample.PairID, sample.Timestamp.UTC().Format(sampleTimeLayout), sample.Price.String())
	if err != nil {
		return fmt.Errorf("save sample: %w", err)
	}
	return nil
}

// ListByPairInRange returns samples for a pair with from <= timestamp < to,
// ascending by timestamp. Fixed-width UTC text compares in time order.
func (s *SampleStore) ListByPairInRange(ctx context.Context, pairID int64, from, to time.Time) ([]domain.MarketPriceSample, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT pair_id,timestamp,price FROM market_prices
WHERE pair_id=? AND timestamp>=? AND timestamp<?
ORDER BY timestamp ASC
`, pairID, from.UTC().Format(sampleTimeLayout), to.UTC().Format(sampleTimeLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MarketPriceSample
	for rows.Next() {
		var sm domain.MarketPriceSample
		var ts, price string
		if err := rows.Scan(&sm.PairID, &ts, &price); err != nil {
			return nil, err
		}
		sm.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse sample timestamp: %w", err)
		}
		sm.Price, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("parse sample price: %w", err)
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

// Latest returns the most recent sample for a pair, or nil when none exist.
func (s *SampleStore) Latest(ctx context.Context, pairID int64) (*domain.MarketPriceSample, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT pair_id,timestamp,price FROM market_prices
WHERE pair_id=? ORDER BY timestamp DESC LIMIT 1
`, pairID)

	var sm domain.MarketPriceSample
	var ts, price string
	if err := row.Scan(&sm.PairID, &ts, &price); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("parse sample timestamp: %w", err)
	}
	sm.Timestamp = parsed
	sm.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse sample price: %w", err)
	}
	return &sm, nil
}
