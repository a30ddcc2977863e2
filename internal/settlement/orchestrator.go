package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dexlab-io/matchbook/internal/book"
	"github.com/dexlab-io/matchbook/internal/domain"
	"github.com/dexlab-io/matchbook/internal/store"
)

// OrderStore is the slice of the order store the orchestrator needs.
type OrderStore interface {
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error
}

// TradeStore records settlement attempts.
type TradeStore interface {
	Save(ctx context.Context, t *domain.Trade) error
}

// Orchestrator turns a match result into one settlement contract call.
// Order statuses are flipped before submission; a failed submission
// leaves a failed trade row and the statuses stand, since the fills
// already happened in the book.
type Orchestrator struct {
	orders OrderStore
	trades TradeStore
	client Client
	log    *zap.Logger

	persistAttempts int
	persistBackoff  time.Duration
}

// NewOrchestrator wires the orchestrator's dependencies. Status and
// trade writes retry persistAttempts times with persistBackoff between
// tries; the trade row is the only durable record of a broadcast
// transaction, so a transient storage failure must not drop it.
func NewOrchestrator(orders OrderStore, trades TradeStore, client Client, log *zap.Logger, persistAttempts int, persistBackoff time.Duration) *Orchestrator {
	return &Orchestrator{
		orders:          orders,
		trades:          trades,
		client:          client,
		log:             log,
		persistAttempts: persistAttempts,
		persistBackoff:  persistBackoff,
	}
}

// Process settles the result of one book submit. Returns nil when the
// result produced no fills (the order only rested). On success the
// returned trade carries the transaction hash.
func (o *Orchestrator) Process(ctx context.Context, pair *domain.Pair, res *book.MatchResult) (*domain.Trade, error) {
	legs := collectLegs(res)
	if len(legs) == 0 {
		return nil, nil
	}

	unitPrice, _ := res.FirstFillPrice()
	batch := &domain.TradeBatch{
		Pair:      pair,
		UnitPrice: unitPrice,
	}
	for _, f := range res.Fills {
		batch.TotalSize = batch.TotalSize.Add(f.Quantity)
	}

	for _, leg := range legs {
		ord, err := o.orders.Get(ctx, leg.orderID)
		if err != nil {
			return nil, fmt.Errorf("resolve leg %s: %w", leg.orderID, err)
		}
		if err := o.persist(ctx, func() error {
			return o.orders.UpdateStatus(ctx, leg.orderID, leg.status)
		}); err != nil {
			return nil, fmt.Errorf("mark leg %s: %w", leg.orderID, err)
		}

		tl := domain.TradeLeg{
			OrderID:   leg.orderID,
			User:      ord.Creator,
			Size:      leg.size,
			Signature: ord.Signature,
		}
		if leg.side == domain.SideBuy {
			batch.Bids = append(batch.Bids, tl)
		} else {
			batch.Asks = append(batch.Asks, tl)
		}
	}

	callArgs, err := json.Marshal(batchCallArgs(batch))
	if err != nil {
		return nil, fmt.Errorf("marshal call args: %w", err)
	}

	trade := &domain.Trade{
		TradeID:     uuid.NewString(),
		SubmittedAt: time.Now().UTC(),
		CallArgs:    string(callArgs),
		Status:      domain.TradeStatusPending,
	}

	if err := o.client.Simulate(ctx, batch); err != nil {
		o.log.Warn("settlement simulation rejected batch",
			zap.String("pair", pair.PairName), zap.Error(err))
		trade.Status = domain.TradeStatusFailed
		if saveErr := o.saveTrade(ctx, trade); saveErr != nil {
			o.log.Error("record failed trade", zap.Error(saveErr))
		}
		return trade, err
	}

	txHash, err := o.client.Submit(ctx, batch)
	if err != nil {
		o.log.Error("settlement submission failed",
			zap.String("pair", pair.PairName), zap.Error(err))
		trade.Status = domain.TradeStatusFailed
		if saveErr := o.saveTrade(ctx, trade); saveErr != nil {
			o.log.Error("record failed trade", zap.Error(saveErr))
		}
		return trade, err
	}

	trade.TxHash = txHash
	trade.Status = domain.TradeStatusOpen
	if err := o.saveTrade(ctx, trade); err != nil {
		return nil, fmt.Errorf("record trade %s: %w", trade.TradeID, err)
	}

	o.log.Info("settlement submitted",
		zap.String("pair", pair.PairName),
		zap.String("trade_id", trade.TradeID),
		zap.String("tx_hash", txHash),
		zap.String("total_size", batch.TotalSize.String()),
		zap.String("unit_price", batch.UnitPrice.String()))
	return trade, nil
}

func (o *Orchestrator) saveTrade(ctx context.Context, trade *domain.Trade) error {
	return o.persist(ctx, func() error { return o.trades.Save(ctx, trade) })
}

func (o *Orchestrator) persist(ctx context.Context, fn func() error) error {
	return store.WithRetry(ctx, o.persistAttempts, o.persistBackoff, fn)
}

type pendingLeg struct {
	orderID string
	side    domain.Side
	size    decimal.Decimal
	status  domain.OrderStatus
}

// collectLegs flattens a match result into settlement legs. Fully
// consumed orders become matched; the partially filled one, if any,
// contributes only its processed quantity.
func collectLegs(res *book.MatchResult) []pendingLeg {
	if len(res.Fills) == 0 {
		return nil
	}

	legs := make([]pendingLeg, 0, len(res.Done)+1)
	for _, done := range res.Done {
		legs = append(legs, pendingLeg{
			orderID: done.OrderID,
			side:    done.Side,
			size:    done.Quantity,
			status:  domain.OrderStatusMatched,
		})
	}
	if res.Partial != nil {
		legs = append(legs, pendingLeg{
			orderID: res.Partial.OrderID,
			side:    res.Partial.Side,
			size:    res.PartialQuantityProcessed,
			status:  domain.OrderStatusPartiallyFilled,
		})
	}
	return legs
}

// callArgsJSON is the audit form of the batch stored on the trade row.
type callArgsJSON struct {
	Pair      string          `json:"pair"`
	Bids      []callLegJSON   `json:"bids"`
	Asks      []callLegJSON   `json:"asks"`
	TotalSize decimal.Decimal `json:"total_size"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type callLegJSON struct {
	OrderID   string          `json:"order_id"`
	User      string          `json:"user"`
	Size      decimal.Decimal `json:"size"`
	Signature string          `json:"signature"`
}

func batchCallArgs(batch *domain.TradeBatch) callArgsJSON {
	out := callArgsJSON{
		Pair:      batch.Pair.PairName,
		Bids:      make([]callLegJSON, 0, len(batch.Bids)),
		Asks:      make([]callLegJSON, 0, len(batch.Asks)),
		TotalSize: batch.TotalSize,
		UnitPrice: batch.UnitPrice,
	}
	for _, l := range batch.Bids {
		out.Bids = append(out.Bids, callLegJSON{OrderID: l.OrderID, User: l.User, Size: l.Size, Signature: l.Signature})
	}
	for _, l := range batch.Asks {
		out.Asks = append(out.Asks, callLegJSON{OrderID: l.OrderID, User: l.User, Size: l.Size, Signature: l.Signature})
	}
	return out
}
