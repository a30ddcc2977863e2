package book

import (
	"time"

	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"github.com/dexlab-io/matchbook/internal/domain"
)

// Entry is a resting order held by a ledger. Seq is a per-book
// monotonic insertion sequence; ties at a price resolve by Seq, which
// gives strict FIFO within a price level.
type Entry struct {
	OrderID   string
	Side      domain.Side
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Seq       uint64
	CreatedAt time.Time
}

// Level is an aggregated view of all resting orders at one price.
type Level struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Orders   int
}

// bidLess orders the bid ledger: price descending, then Seq ascending,
// so Min() returns the best bid with time priority.
func bidLess(a, b Entry) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c > 0
	}
	return a.Seq < b.Seq
}

// askLess orders the ask ledger: price ascending, then Seq ascending.
// Min() returns the best ask with time priority.
func askLess(a, b Entry) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c < 0
	}
	return a.Seq < b.Seq
}

// Ledger holds one side of a book: resting orders ordered best price
// first and FIFO within a price, backed by a B-tree with a secondary
// index for O(log n) removal by order id. A price level exists exactly
// as long as it has at least one entry.
type Ledger struct {
	side  domain.Side
	tree  *btree.BTreeG[Entry]
	index map[string]Entry // order_id → entry
}

// NewLedger creates an empty ledger for the given side.
func NewLedger(side domain.Side) *Ledger {
	const degree = 32
	less := askLess
	if side == domain.SideBuy {
		less = bidLess
	}
	return &Ledger{
		side:  side,
		tree:  btree.NewG[Entry](degree, less),
		index: make(map[string]Entry),
	}
}

// Insert adds a resting order at the FIFO tail of its price level.
func (l *Ledger) Insert(e Entry) {
	l.tree.ReplaceOrInsert(e)
	l.index[e.OrderID] = e
}

// Remove deletes an order by id, returning the removed entry.
func (l *Ledger) Remove(orderID string) (Entry, bool) {
	e, ok := l.index[orderID]
	if !ok {
		return Entry{}, false
	}
	delete(l.index, orderID)
	l.tree.Delete(e)
	return e, true
}

// BestPrice returns the price of the side's best level, if any.
func (l *Ledger) BestPrice() (decimal.Decimal, bool) {
	e, ok := l.tree.Min()
	if !ok {
		return decimal.Decimal{}, false
	}
	return e.Price, true
}

// PeekFront returns the oldest order at the given price without
// removing it.
func (l *Ledger) PeekFront(price decimal.Decimal) (Entry, bool) {
	var front Entry
	found := false
	// Seq 0 sorts before every real entry at this price on both sides.
	l.tree.AscendGreaterOrEqual(Entry{Price: price, Seq: 0}, func(e Entry) bool {
		if e.Price.Equal(price) {
			front = e
			found = true
		}
		return false
	})
	return front, found
}

// PopFront removes and returns the oldest order at the given price.
// The level disappears with its last entry.
func (l *Ledger) PopFront(price decimal.Decimal) (Entry, bool) {
	e, ok := l.PeekFront(price)
	if !ok {
		return Entry{}, false
	}
	l.tree.Delete(e)
	delete(l.index, e.OrderID)
	return e, true
}

// Reduce replaces the remaining quantity of a resting order, keeping
// its position in the FIFO (price and seq are unchanged).
func (l *Ledger) Reduce(orderID string, remaining decimal.Decimal) bool {
	e, ok := l.index[orderID]
	if !ok {
		return false
	}
	e.Quantity = remaining
	l.tree.ReplaceOrInsert(e)
	l.index[orderID] = e
	return true
}

// Walk iterates entries in priority order (best price first, FIFO
// within a price). The callback returns false to stop.
func (l *Ledger) Walk(fn func(Entry) bool) {
	l.tree.Ascend(fn)
}

// Levels aggregates entries into per-price levels in priority order.
func (l *Ledger) Levels() []Level {
	var levels []Level
	l.tree.Ascend(func(e Entry) bool {
		if n := len(levels); n > 0 && levels[n-1].Price.Equal(e.Price) {
			levels[n-1].Quantity = levels[n-1].Quantity.Add(e.Quantity)
			levels[n-1].Orders++
			return true
		}
		levels = append(levels, Level{Price: e.Price, Quantity: e.Quantity, Orders: 1})
		return true
	})
	return levels
}

// Len returns the number of resting orders on this side.
func (l *Ledger) Len() int {
	return l.tree.Len()
}
