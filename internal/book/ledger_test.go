package book

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dexlab-io/matchbook/internal/domain"
)

func entry(id string, side domain.Side, price int64, qty int64, seq uint64) Entry {
	return Entry{
		OrderID:   id,
		Side:      side,
		Price:     decimal.NewFromInt(price),
		Quantity:  decimal.NewFromInt(qty),
		Seq:       seq,
		CreatedAt: time.Now(),
	}
}

func TestLedger_BestPrice_Bids(t *testing.T) {
	l := NewLedger(domain.SideBuy)
	l.Insert(entry("a", domain.SideBuy, 100, 1, 1))
	l.Insert(entry("b", domain.SideBuy, 105, 1, 2))
	l.Insert(entry("c", domain.SideBuy, 95, 1, 3))

	best, ok := l.BestPrice()
	if !ok {
		t.Fatal("expected a best price")
	}
	if !best.Equal(decimal.NewFromInt(105)) {
		t.Errorf("best bid = %s, want 105", best)
	}
}

func TestLedger_BestPrice_Asks(t *testing.T) {
	l := NewLedger(domain.SideSell)
	l.Insert(entry("a", domain.SideSell, 100, 1, 1))
	l.Insert(entry("b", domain.SideSell, 105, 1, 2))
	l.Insert(entry("c", domain.SideSell, 95, 1, 3))

	best, ok := l.BestPrice()
	if !ok {
		t.Fatal("expected a best price")
	}
	if !best.Equal(decimal.NewFromInt(95)) {
		t.Errorf("best ask = %s, want 95", best)
	}
}

func TestLedger_BestPrice_Empty(t *testing.T) {
	l := NewLedger(domain.SideBuy)
	if _, ok := l.BestPrice(); ok {
		t.Error("empty ledger should have no best price")
	}
}

func TestLedger_PeekFront_FIFO(t *testing.T) {
	l := NewLedger(domain.SideSell)
	l.Insert(entry("first", domain.SideSell, 100, 5, 1))
	l.Insert(entry("second", domain.SideSell, 100, 5, 2))

	front, ok := l.PeekFront(decimal.NewFromInt(100))
	if !ok {
		t.Fatal("expected a front entry")
	}
	if front.OrderID != "first" {
		t.Errorf("front = %q, want %q", front.OrderID, "first")
	}
}

func TestLedger_PeekFront_NoLevel(t *testing.T) {
	l := NewLedger(domain.SideSell)
	l.Insert(entry("a", domain.SideSell, 100, 5, 1))

	if _, ok := l.PeekFront(decimal.NewFromInt(101)); ok {
		t.Error("PeekFront should miss a price with no level")
	}
}

func TestLedger_PopFront_RemovesLevelWhenEmpty(t *testing.T) {
	l := NewLedger(domain.SideSell)
	l.Insert(entry("a", domain.SideSell, 100, 5, 1))

	e, ok := l.PopFront(decimal.NewFromInt(100))
	if !ok || e.OrderID != "a" {
		t.Fatalf("PopFront = (%v, %v), want order a", e.OrderID, ok)
	}
	if _, ok := l.PeekFront(decimal.NewFromInt(100)); ok {
		t.Error("level should be gone after popping its last entry")
	}
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0", l.Len())
	}
}

func TestLedger_Remove(t *testing.T) {
	l := NewLedger(domain.SideBuy)
	l.Insert(entry("a", domain.SideBuy, 100, 5, 1))
	l.Insert(entry("b", domain.SideBuy, 100, 3, 2))

	removed, ok := l.Remove("a")
	if !ok || removed.OrderID != "a" {
		t.Fatalf("Remove(a) = (%v, %v)", removed.OrderID, ok)
	}
	if _, ok := l.Remove("a"); ok {
		t.Error("second Remove of same id should miss")
	}

	// The later order at the same price is now the front.
	front, _ := l.PeekFront(decimal.NewFromInt(100))
	if front.OrderID != "b" {
		t.Errorf("front = %q, want %q", front.OrderID, "b")
	}
}

func TestLedger_Reduce_KeepsPosition(t *testing.T) {
	l := NewLedger(domain.SideSell)
	l.Insert(entry("a", domain.SideSell, 100, 10, 1))
	l.Insert(entry("b", domain.SideSell, 100, 10, 2))

	if !l.Reduce("a", decimal.NewFromInt(4)) {
		t.Fatal("Reduce should find the order")
	}

	front, _ := l.PeekFront(decimal.NewFromInt(100))
	if front.OrderID != "a" {
		t.Errorf("front = %q, want %q (reduced order keeps the front)", front.OrderID, "a")
	}
	if !front.Quantity.Equal(decimal.NewFromInt(4)) {
		t.Errorf("front quantity = %s, want 4", front.Quantity)
	}
}

func TestLedger_Levels_Aggregation(t *testing.T) {
	l := NewLedger(domain.SideSell)
	l.Insert(entry("a", domain.SideSell, 100, 5, 1))
	l.Insert(entry("b", domain.SideSell, 100, 3, 2))
	l.Insert(entry("c", domain.SideSell, 110, 7, 3))

	levels := l.Levels()
	if len(levels) != 2 {
		t.Fatalf("len(levels) = %d, want 2", len(levels))
	}
	if !levels[0].Price.Equal(decimal.NewFromInt(100)) || !levels[0].Quantity.Equal(decimal.NewFromInt(8)) || levels[0].Orders != 2 {
		t.Errorf("level[0] = %+v, want price 100 qty 8 orders 2", levels[0])
	}
	if !levels[1].Price.Equal(decimal.NewFromInt(110)) || levels[1].Orders != 1 {
		t.Errorf("level[1] = %+v, want price 110 orders 1", levels[1])
	}
}
