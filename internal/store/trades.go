package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dexlab-io/matchbook/internal/domain"
)

// TradeStore records settlement attempts, both submitted and rejected.
type TradeStore struct {
	db *sql.DB
}

// NewTradeStore creates a TradeStore over the given database.
func NewTradeStore(db *sql.DB) *TradeStore {
	return &TradeStore{db: db}
}

// Save inserts a trade row.
func (s *TradeStore) Save(ctx context.Context, t *domain.Trade) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO trades (trade_id,tx_hash,submitted_at,call_args,status)
VALUES (?,?,?,?,?)
`, t.TradeID, t.TxHash, t.SubmittedAt.UTC().Format(time.RFC3339Nano), t.CallArgs, string(t.Status))
	if err != nil {
		return fmt.Errorf("save trade: %w", err)
	}
	return nil
}

// Get returns a trade by id.
func (s *TradeStore) Get(ctx context.Context, tradeID string) (*domain.Trade, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT trade_id,tx_hash,submitted_at,call_args,status FROM trades WHERE trade_id=?
`, tradeID)

	var t domain.Trade
	var submittedAt, status string
	if err := row.Scan(&t.TradeID, &t.TxHash, &submittedAt, &t.CallArgs, &status); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrTradeNotFound
		}
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339Nano, submittedAt)
	if err != nil {
		return nil, fmt.Errorf("parse trade timestamp: %w", err)
	}
	t.SubmittedAt = ts
	t.Status = domain.TradeStatus(status)
	return &t, nil
}

// UpdateStatus moves a trade to a new status, e.g. after a receipt check.
func (s *TradeStore) UpdateStatus(ctx context.Context, tradeID string, status domain.TradeStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE trades SET status=? WHERE trade_id=?`, string(status), tradeID)
	if err != nil {
		return fmt.Errorf("update trade status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrTradeNotFound
	}
	return nil
}
