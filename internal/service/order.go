package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dexlab-io/matchbook/internal/book"
	"github.com/dexlab-io/matchbook/internal/domain"
	"github.com/dexlab-io/matchbook/internal/settlement"
	"github.com/dexlab-io/matchbook/internal/store"
)

// Orchestrator settles the fills of one submit. Implemented by
// settlement.Orchestrator; a nil-safe fake in tests.
type Orchestrator interface {
	Process(ctx context.Context, pair *domain.Pair, res *book.MatchResult) (*domain.Trade, error)
}

// OrderStore is the persistence surface the order service needs.
type OrderStore interface {
	Save(ctx context.Context, o *domain.Order) error
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	ListOpenByCreator(ctx context.Context, creator string) ([]*domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error
}

// SnapshotStore persists the book snapshot after mutations.
type SnapshotStore interface {
	Upsert(ctx context.Context, pairID int64, content []byte) error
}

// SubmitOrderRequest represents the input for order submission.
type SubmitOrderRequest struct {
	PairName  string
	OrderID   string
	Side      domain.Side
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Creator   string
	Signature string
}

// GenerateOrderIDRequest carries the fields the client wants encoded
// into a deterministic order id, which doubles as the message to sign.
type GenerateOrderIDRequest struct {
	PairName string
	Creator  string
	Side     domain.Side
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// SubmitOrderResult reports what one submission did: how the book
// changed and, when fills settled, the trade carrying the tx hash.
type SubmitOrderResult struct {
	Order *domain.Order
	Match *book.MatchResult
	Trade *domain.Trade // nil when the order only rested
}

// OrderService handles order id generation, submission, cancellation
// and listing.
type OrderService struct {
	registry     *book.Registry
	orders       OrderStore
	snapshots    SnapshotStore
	orchestrator Orchestrator
	verifier     *settlement.Verifier
	log          *zap.Logger

	persistAttempts int
	persistBackoff  time.Duration
}

// NewOrderService creates a new OrderService with the given dependencies.
func NewOrderService(
	registry *book.Registry,
	orders OrderStore,
	snapshots SnapshotStore,
	orchestrator Orchestrator,
	verifier *settlement.Verifier,
	log *zap.Logger,
	persistAttempts int,
	persistBackoff time.Duration,
) *OrderService {
	return &OrderService{
		registry:        registry,
		orders:          orders,
		snapshots:       snapshots,
		orchestrator:    orchestrator,
		verifier:        verifier,
		log:             log,
		persistAttempts: persistAttempts,
		persistBackoff:  persistBackoff,
	}
}

// GenerateOrderID validates the request and returns the deterministic
// order id the creator must sign before submitting.
func (s *OrderService) GenerateOrderID(req GenerateOrderIDRequest) (string, error) {
	if err := validateOrderFields(req.Side, req.Price, req.Quantity); err != nil {
		return "", err
	}
	if req.PairName == "" {
		return "", &domain.ValidationError{Message: "pair_name is required"}
	}
	if req.Creator == "" {
		return "", &domain.ValidationError{Message: "creator is required"}
	}
	return domain.NewOrderID(req.PairName, req.Creator, req.Side, req.Quantity, req.Price, time.Now()), nil
}

// SubmitOrder validates and persists the order, runs it through the
// pair's book, settles any fills and persists the updated snapshot.
// The book mutation stands even when settlement fails; the error is
// returned alongside the result so the caller sees both.
func (s *OrderService) SubmitOrder(ctx context.Context, req SubmitOrderRequest) (*SubmitOrderResult, error) {
	if err := validateOrderFields(req.Side, req.Price, req.Quantity); err != nil {
		return nil, err
	}
	if req.OrderID == "" {
		return nil, &domain.ValidationError{Message: "order_id is required"}
	}
	if req.Creator == "" {
		return nil, &domain.ValidationError{Message: "creator is required"}
	}

	b, pair, err := s.registry.Get(req.PairName)
	if err != nil {
		return nil, err
	}

	if err := s.verifier.Verify(req.OrderID, req.Signature, req.Creator); err != nil {
		return nil, err
	}

	order := &domain.Order{
		OrderID:   req.OrderID,
		PairName:  req.PairName,
		Side:      req.Side,
		Price:     req.Price,
		Quantity:  req.Quantity,
		Creator:   req.Creator,
		Signature: req.Signature,
		Status:    domain.OrderStatusOpen,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.persist(ctx, func() error { return s.orders.Save(ctx, order) }); err != nil {
		return nil, fmt.Errorf("persist order %s: %w", order.OrderID, err)
	}

	res, err := b.Submit(order)
	if err != nil {
		return nil, err
	}

	if res.Mutated() {
		s.persistSnapshot(ctx, b, pair)
	}

	result := &SubmitOrderResult{Order: order, Match: res}
	if len(res.Fills) == 0 {
		return result, nil
	}

	trade, err := s.orchestrator.Process(ctx, pair, res)
	result.Trade = trade
	if err != nil {
		return result, err
	}

	return result, nil
}

// CancelOrder removes a resting order from its book and marks it
// cancelled. The pair is derived from the order id. Cancelling an
// unknown or already-cancelled order returns domain.ErrOrderNotFound
// and changes nothing.
func (s *OrderService) CancelOrder(ctx context.Context, orderID string) error {
	pairName := domain.PairFromOrderID(orderID)
	if pairName == "" {
		return &domain.ValidationError{Message: "order_id is malformed"}
	}

	b, pair, err := s.registry.Get(pairName)
	if err != nil {
		return err
	}

	if _, err := b.Cancel(orderID); err != nil {
		return err
	}

	if err := s.persist(ctx, func() error {
		return s.orders.UpdateStatus(ctx, orderID, domain.OrderStatusCancelled)
	}); err != nil {
		s.log.Error("mark order cancelled", zap.String("order_id", orderID), zap.Error(err))
	}
	s.persistSnapshot(ctx, b, pair)

	s.log.Info("order cancelled", zap.String("pair", pairName), zap.String("order_id", orderID))
	return nil
}

// OpenOrders lists a creator's orders still resting on a book. This
// includes partially filled makers, whose remainder is still live.
func (s *OrderService) OpenOrders(ctx context.Context, creator string) ([]*domain.Order, error) {
	if creator == "" {
		return nil, &domain.ValidationError{Message: "creator is required"}
	}
	return s.orders.ListOpenByCreator(ctx, creator)
}

// persistSnapshot overwrites the pair's stored snapshot with the book's
// current state. Failure is logged, not returned: the in-memory book is
// authoritative and the next mutation writes a fresh snapshot.
func (s *OrderService) persistSnapshot(ctx context.Context, b *book.Book, pair *domain.Pair) {
	content, err := b.Snapshot().Marshal()
	if err != nil {
		s.log.Error("marshal snapshot", zap.String("pair", pair.PairName), zap.Error(err))
		return
	}
	if err := s.persist(ctx, func() error {
		return s.snapshots.Upsert(ctx, pair.ID, content)
	}); err != nil {
		s.log.Error("persist snapshot", zap.String("pair", pair.PairName), zap.Error(err))
	}
}

func (s *OrderService) persist(ctx context.Context, fn func() error) error {
	return store.WithRetry(ctx, s.persistAttempts, s.persistBackoff, fn)
}

func validateOrderFields(side domain.Side, price, quantity decimal.Decimal) error {
	if side != domain.SideBuy && side != domain.SideSell {
		return &domain.ValidationError{Message: "side must be 'buy' or 'sell'"}
	}
	if !price.IsPositive() {
		return &domain.ValidationError{Message: "price must be greater than 0"}
	}
	if !quantity.IsPositive() {
		return &domain.ValidationError{Message: "quantity must be greater than 0"}
	}
	return nil
}
