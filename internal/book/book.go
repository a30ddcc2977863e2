package book

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/dexlab-io/matchbook/internal/domain"
)

// Fill records one maker/taker execution inside a submit call.
type Fill struct {
	TakerID  string
	MakerID  string
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// ProcessedOrder is an order touched by a match event with the quantity
// it contributed during that event.
type ProcessedOrder struct {
	OrderID  string
	Side     domain.Side
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// MatchResult is the outcome of one Submit call: fully processed orders
// (makers swept plus the taker when it filled completely), at most one
// partially processed order, and the ordered fill list. It is transient
// and only consumed by the settlement orchestrator.
type MatchResult struct {
	Done                     []ProcessedOrder
	Partial                  *ProcessedOrder
	PartialQuantityProcessed decimal.Decimal
	Fills                    []Fill
	Rested                   bool // remainder inserted as a resting order
}

// Mutated reports whether the submit changed book state and therefore
// requires a snapshot write.
func (r *MatchResult) Mutated() bool {
	return len(r.Fills) > 0 || r.Rested
}

// FirstFillPrice returns the price of the first fill of the submit.
func (r *MatchResult) FirstFillPrice() (decimal.Decimal, bool) {
	if len(r.Fills) == 0 {
		return decimal.Decimal{}, false
	}
	return r.Fills[0].Price, true
}

// Book is the limit order book for a single pair. All mutating
// operations are serialized by the book's own mutex; different pairs
// are fully independent.
type Book struct {
	pairName string

	mu      sync.Mutex
	bids    *Ledger
	asks    *Ledger
	nextSeq uint64
}

// New creates an empty book for the given pair.
func New(pairName string) *Book {
	return &Book{
		pairName: pairName,
		bids:     NewLedger(domain.SideBuy),
		asks:     NewLedger(domain.SideSell),
		nextSeq:  1,
	}
}

// PairName returns the pair this book belongs to.
func (b *Book) PairName() string { return b.pairName }

// Submit runs the incoming order through the matching loop under the
// book lock. The taker consumes resting liquidity across as many price
// levels as its limit allows (price priority, FIFO within a level);
// any remainder rests at the tail of its own side.
func (b *Book) Submit(o *domain.Order) (*MatchResult, error) {
	if err := validateOrder(o); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	own, opp := b.bids, b.asks
	if o.Side == domain.SideSell {
		own, opp = b.asks, b.bids
	}

	res := &MatchResult{}
	remaining := o.Quantity

	for remaining.IsPositive() {
		best, ok := opp.BestPrice()
		if !ok {
			break
		}
		if o.Side == domain.SideBuy && best.GreaterThan(o.Price) {
			break
		}
		if o.Side == domain.SideSell && best.LessThan(o.Price) {
			break
		}

		maker, ok := opp.PeekFront(best)
		if !ok {
			// BestPrice promised a level here; an empty one means the
			// ledger index is corrupt and matching must not continue.
			panic(fmt.Sprintf("book %s: price level %s indexed but empty", b.pairName, best))
		}

		fill := decimal.Min(remaining, maker.Quantity)
		remaining = remaining.Sub(fill)
		res.Fills = append(res.Fills, Fill{
			TakerID:  o.OrderID,
			MakerID:  maker.OrderID,
			Price:    best,
			Quantity: fill,
		})

		if maker.Quantity.Equal(fill) {
			opp.PopFront(best)
			res.Done = append(res.Done, ProcessedOrder{
				OrderID:  maker.OrderID,
				Side:     maker.Side,
				Price:    maker.Price,
				Quantity: maker.Quantity,
			})
		} else {
			// Maker keeps the front of its level with reduced quantity;
			// the taker is exhausted, so the loop ends.
			opp.Reduce(maker.OrderID, maker.Quantity.Sub(fill))
			res.Partial = &ProcessedOrder{
				OrderID:  maker.OrderID,
				Side:     maker.Side,
				Price:    maker.Price,
				Quantity: fill,
			}
			res.PartialQuantityProcessed = fill
		}
	}

	filled := o.Quantity.Sub(remaining)
	if remaining.IsPositive() {
		if filled.IsPositive() {
			res.Partial = &ProcessedOrder{
				OrderID:  o.OrderID,
				Side:     o.Side,
				Price:    o.Price,
				Quantity: filled,
			}
			res.PartialQuantityProcessed = filled
		}
		own.Insert(Entry{
			OrderID:   o.OrderID,
			Side:      o.Side,
			Price:     o.Price,
			Quantity:  remaining,
			Seq:       b.nextSeq,
			CreatedAt: o.CreatedAt,
		})
		b.nextSeq++
		res.Rested = true
	} else {
		res.Done = append(res.Done, ProcessedOrder{
			OrderID:  o.OrderID,
			Side:     o.Side,
			Price:    o.Price,
			Quantity: filled,
		})
	}

	return res, nil
}

// Cancel removes a resting order from whichever side holds it. An
// unknown or already-filled order reports domain.ErrOrderNotFound; the
// caller treats that as a no-op, not a failure.
func (b *Book) Cancel(orderID string) (Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if e, ok := b.bids.Remove(orderID); ok {
		return e, nil
	}
	if e, ok := b.asks.Remove(orderID); ok {
		return e, nil
	}
	return Entry{}, domain.ErrOrderNotFound
}

// EstimateMarketPrice walks the opposite side from the best price
// outward, accumulating quantity until the requested amount is covered.
// Exhausting the side returns the last seen price as a best-effort
// estimate; an empty side returns zero. The book is not mutated.
func (b *Book) EstimateMarketPrice(side domain.Side, quantity decimal.Decimal) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()

	ledger := b.asks
	if side == domain.SideSell {
		ledger = b.bids
	}

	price := decimal.Zero
	remaining := quantity
	ledger.Walk(func(e Entry) bool {
		price = e.Price
		remaining = remaining.Sub(e.Quantity)
		return remaining.IsPositive()
	})
	return price
}

// Depth returns both sides aggregated into price levels, best first.
func (b *Book) Depth() (bids, asks []Level) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bids.Levels(), b.asks.Levels()
}

// BestBidAsk returns the top-of-book prices. Either side may be absent.
func (b *Book) BestBidAsk() (bid, ask decimal.Decimal, hasBid, hasAsk bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bid, hasBid = b.bids.BestPrice()
	ask, hasAsk = b.asks.BestPrice()
	return bid, ask, hasBid, hasAsk
}

func validateOrder(o *domain.Order) error {
	if o.Side != domain.SideBuy && o.Side != domain.SideSell {
		return &domain.ValidationError{Message: "side must be 'buy' or 'sell'"}
	}
	if !o.Price.IsPositive() {
		return &domain.ValidationError{Message: "price must be greater than 0"}
	}
	if !o.Quantity.IsPositive() {
		return &domain.ValidationError{Message: "quantity must be greater than 0"}
	}
	if o.OrderID == "" {
		return &domain.ValidationError{Message: "order_id is required"}
	}
	return nil
}
