package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dexlab-io/matchbook/internal/domain"
)

// PairWithSnapshot joins a pair with its latest book snapshot, if any.
// Used by registry bootstrap at process start.
type PairWithSnapshot struct {
	Pair     *domain.Pair
	Snapshot []byte // nil when the pair has never persisted one
}

// PairStore persists immutable trading-pair configuration.
type PairStore struct {
	db *sql.DB
}

// NewPairStore creates a PairStore over the given database.
func NewPairStore(db *sql.DB) *PairStore {
	return &PairStore{db: db}
}

// Create inserts a new pair and fills in its assigned id. A pair name
// collision returns domain.ErrDuplicatePair.
func (s *PairStore) Create(ctx context.Context, p *domain.Pair) error {
	if p.PairName == "" {
		p.PairName = domain.PairNameFor(p.BaseTokenSymbol, p.QuoteTokenSymbol)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
INSERT INTO pairs (pair_name,base_token_symbol,quote_token_symbol,base_token,quote_token,base_token_type,quote_token_type,token_id,created_at)
VALUES (?,?,?,?,?,?,?,?,?)
`, p.PairName, p.BaseTokenSymbol, p.QuoteTokenSymbol, p.BaseToken, p.QuoteToken,
		p.BaseTokenType, p.QuoteTokenType, nullableInt(p.TokenID),
		p.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicatePair
		}
		return fmt.Errorf("insert pair: %w", err)
	}

	p.ID, err = res.LastInsertId()
	if err != nil {
		return err
	}
	return nil
}

// GetByName looks a pair up by its canonical name.
func (s *PairStore) GetByName(ctx context.Context, pairName string) (*domain.Pair, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id,pair_name,base_token_symbol,quote_token_symbol,base_token,quote_token,base_token_type,quote_token_type,token_id,created_at
FROM pairs WHERE pair_name=?
`, pairName)

	p, err := scanPair(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPairNotFound
		}
		return nil, err
	}
	return p, nil
}

// List returns every pair with its latest snapshot content (nil when
// no snapshot has been written yet).
func (s *PairStore) List(ctx context.Context) ([]PairWithSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT p.id,p.pair_name,p.base_token_symbol,p.quote_token_symbol,p.base_token,p.quote_token,p.base_token_type,p.quote_token_type,p.token_id,p.created_at,s.content
FROM pairs p LEFT JOIN snapshots s ON s.pair_id = p.id
ORDER BY p.id ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PairWithSnapshot
	for rows.Next() {
		var p domain.Pair
		var tokenID sql.NullInt64
		var createdAt string
		var content sql.NullString
		if err := rows.Scan(&p.ID, &p.PairName, &p.BaseTokenSymbol, &p.QuoteTokenSymbol,
			&p.BaseToken, &p.QuoteToken, &p.BaseTokenType, &p.QuoteTokenType,
			&tokenID, &createdAt, &content); err != nil {
			return nil, err
		}
		if tokenID.Valid {
			v := tokenID.Int64
			p.TokenID = &v
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

		pws := PairWithSnapshot{Pair: &p}
		if content.Valid {
			pws.Snapshot = []byte(content.String)
		}
		out = append(out, pws)
	}
	return out, rows.Err()
}

func scanPair(scan func(dest ...any) error) (*domain.Pair, error) {
	var p domain.Pair
	var tokenID sql.NullInt64
	var createdAt string
	if err := scan(&p.ID, &p.PairName, &p.BaseTokenSymbol, &p.QuoteTokenSymbol,
		&p.BaseToken, &p.QuoteToken, &p.BaseTokenType, &p.QuoteTokenType,
		&tokenID, &createdAt); err != nil {
		return nil, err
	}
	if tokenID.Valid {
		v := tokenID.Int64
		p.TokenID = &v
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &p, nil
}

func nullableInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
