package service

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/dexlab-io/matchbook/internal/book"
	"github.com/dexlab-io/matchbook/internal/domain"
	"github.com/dexlab-io/matchbook/internal/store"
)

var (
	tokenSymbolRegex = regexp.MustCompile(`^[a-z0-9]{1,16}$`)
	addressRegex     = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
)

// PairStore is the persistence surface the pair service needs.
type PairStore interface {
	Create(ctx context.Context, p *domain.Pair) error
	List(ctx context.Context) ([]store.PairWithSnapshot, error)
}

// CreatePairRequest represents the input for creating a trading pair.
type CreatePairRequest struct {
	BaseTokenSymbol  string
	QuoteTokenSymbol string
	BaseToken        string
	QuoteToken       string
	BaseTokenType    int64
	QuoteTokenType   int64
	TokenID          *int64
}

// PairService creates pairs and exposes their books.
type PairService struct {
	pairs    PairStore
	registry *book.Registry
	log      *zap.Logger
}

// NewPairService creates a new PairService with the given dependencies.
func NewPairService(pairs PairStore, registry *book.Registry, log *zap.Logger) *PairService {
	return &PairService{pairs: pairs, registry: registry, log: log}
}

// CreatePair persists the pair configuration and registers an empty
// book for it. Pair configuration is immutable once created.
func (s *PairService) CreatePair(ctx context.Context, req CreatePairRequest) (*domain.Pair, error) {
	if !tokenSymbolRegex.MatchString(req.BaseTokenSymbol) {
		return nil, &domain.ValidationError{Message: "base_token_symbol must be 1-16 lowercase alphanumerics"}
	}
	if !tokenSymbolRegex.MatchString(req.QuoteTokenSymbol) {
		return nil, &domain.ValidationError{Message: "quote_token_symbol must be 1-16 lowercase alphanumerics"}
	}
	if !addressRegex.MatchString(req.BaseToken) {
		return nil, &domain.ValidationError{Message: "base_token must be a 0x-prefixed address"}
	}
	if !addressRegex.MatchString(req.QuoteToken) {
		return nil, &domain.ValidationError{Message: "quote_token must be a 0x-prefixed address"}
	}

	pair := &domain.Pair{
		BaseTokenSymbol:  req.BaseTokenSymbol,
		QuoteTokenSymbol: req.QuoteTokenSymbol,
		BaseToken:        req.BaseToken,
		QuoteToken:       req.QuoteToken,
		BaseTokenType:    req.BaseTokenType,
		QuoteTokenType:   req.QuoteTokenType,
		TokenID:          req.TokenID,
	}
	if err := s.pairs.Create(ctx, pair); err != nil {
		return nil, err
	}
	if _, err := s.registry.Register(pair); err != nil {
		return nil, err
	}

	s.log.Info("pair created",
		zap.String("pair", pair.PairName), zap.Int64("pair_id", pair.ID))
	return pair, nil
}

// BookStatus returns the pair's configuration with its current depth.
func (s *PairService) BookStatus(pairName string) (*domain.Pair, []book.Level, []book.Level, error) {
	b, pair, err := s.registry.Get(pairName)
	if err != nil {
		return nil, nil, nil, err
	}
	bids, asks := b.Depth()
	return pair, bids, asks, nil
}

// Bootstrap loads every persisted pair, registers its book and restores
// the latest snapshot. Runs once at startup before the HTTP server
// accepts requests.
func (s *PairService) Bootstrap(ctx context.Context) error {
	list, err := s.pairs.List(ctx)
	if err != nil {
		return fmt.Errorf("list pairs: %w", err)
	}

	for _, pws := range list {
		b, err := s.registry.Register(pws.Pair)
		if err != nil {
			return fmt.Errorf("register %s: %w", pws.Pair.PairName, err)
		}
		if pws.Snapshot == nil {
			continue
		}

		snap, err := book.UnmarshalSnapshot(pws.Snapshot)
		if err != nil {
			return fmt.Errorf("decode snapshot for %s: %w", pws.Pair.PairName, err)
		}
		b.Restore(snap)
		s.log.Info("book restored from snapshot", zap.String("pair", pws.Pair.PairName))
	}

	s.log.Info("bootstrap complete", zap.Int("pairs", len(list)))
	return nil
}
