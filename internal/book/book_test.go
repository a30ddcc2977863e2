package book

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dexlab-io/matchbook/internal/domain"
)

func newOrder(id string, side domain.Side, price, qty int64) *domain.Order {
	return &domain.Order{
		OrderID:   id,
		PairName:  "bazed-musd",
		Side:      side,
		Price:     decimal.NewFromInt(price),
		Quantity:  decimal.NewFromInt(qty),
		Creator:   "0xcafe",
		Status:    domain.OrderStatusOpen,
		CreatedAt: time.Now(),
	}
}

func mustSubmit(t *testing.T, b *Book, o *domain.Order) *MatchResult {
	t.Helper()
	res, err := b.Submit(o)
	if err != nil {
		t.Fatalf("Submit(%s): %v", o.OrderID, err)
	}
	return res
}

func TestSubmit_RestsWhenNoMatch(t *testing.T) {
	b := New("bazed-musd")

	res := mustSubmit(t, b, newOrder("s1", domain.SideSell, 100, 10))

	if len(res.Done) != 0 || res.Partial != nil {
		t.Errorf("no-match submit should have empty result, got %+v", res)
	}
	if !res.Rested {
		t.Error("remainder should rest on the book")
	}
	_, ask, _, hasAsk := b.BestBidAsk()
	if !hasAsk || !ask.Equal(decimal.NewFromInt(100)) {
		t.Errorf("best ask = %s (%v), want 100", ask, hasAsk)
	}
}

func TestSubmit_FullFill(t *testing.T) {
	b := New("bazed-musd")
	mustSubmit(t, b, newOrder("s1", domain.SideSell, 100, 10))

	res := mustSubmit(t, b, newOrder("b1", domain.SideBuy, 100, 10))

	// Maker and taker both processed completely.
	if len(res.Done) != 2 {
		t.Fatalf("len(Done) = %d, want 2", len(res.Done))
	}
	if res.Done[0].OrderID != "s1" || !res.Done[0].Quantity.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Done[0] = %+v, want s1 processed 10", res.Done[0])
	}
	if res.Done[1].OrderID != "b1" {
		t.Errorf("Done[1] = %+v, want the taker b1", res.Done[1])
	}
	if res.Partial != nil {
		t.Errorf("Partial = %+v, want nil", res.Partial)
	}

	bids, asks := b.Depth()
	if len(bids) != 0 || len(asks) != 0 {
		t.Errorf("book should be empty on both sides, got bids=%v asks=%v", bids, asks)
	}
}

func TestSubmit_PartialMaker(t *testing.T) {
	b := New("bazed-musd")
	mustSubmit(t, b, newOrder("s1", domain.SideSell, 100, 10))

	res := mustSubmit(t, b, newOrder("b1", domain.SideBuy, 100, 4))

	if res.Partial == nil || res.Partial.OrderID != "s1" {
		t.Fatalf("Partial = %+v, want s1", res.Partial)
	}
	if !res.PartialQuantityProcessed.Equal(decimal.NewFromInt(4)) {
		t.Errorf("PartialQuantityProcessed = %s, want 4", res.PartialQuantityProcessed)
	}

	_, asks := b.Depth()
	if len(asks) != 1 || !asks[0].Quantity.Equal(decimal.NewFromInt(6)) || !asks[0].Price.Equal(decimal.NewFromInt(100)) {
		t.Errorf("resting asks = %+v, want 6 @ 100", asks)
	}
}

func TestSubmit_PartialTakerRests(t *testing.T) {
	b := New("bazed-musd")
	mustSubmit(t, b, newOrder("s1", domain.SideSell, 100, 4))

	res := mustSubmit(t, b, newOrder("b1", domain.SideBuy, 100, 10))

	if res.Partial == nil || res.Partial.OrderID != "b1" {
		t.Fatalf("Partial = %+v, want taker b1", res.Partial)
	}
	if !res.PartialQuantityProcessed.Equal(decimal.NewFromInt(4)) {
		t.Errorf("PartialQuantityProcessed = %s, want 4", res.PartialQuantityProcessed)
	}
	if !res.Rested {
		t.Error("taker remainder should rest on the bid side")
	}

	bids, asks := b.Depth()
	if len(asks) != 0 {
		t.Errorf("asks should be empty, got %+v", asks)
	}
	if len(bids) != 1 || !bids[0].Quantity.Equal(decimal.NewFromInt(6)) {
		t.Errorf("resting bids = %+v, want 6 @ 100", bids)
	}
}

func TestSubmit_SweepsMultipleLevels(t *testing.T) {
	b := New("bazed-musd")
	mustSubmit(t, b, newOrder("s1", domain.SideSell, 100, 3))
	mustSubmit(t, b, newOrder("s2", domain.SideSell, 101, 3))
	mustSubmit(t, b, newOrder("s3", domain.SideSell, 102, 3))

	res := mustSubmit(t, b, newOrder("b1", domain.SideBuy, 102, 9))

	if len(res.Fills) != 3 {
		t.Fatalf("len(Fills) = %d, want 3 (one per level)", len(res.Fills))
	}
	for i, want := range []int64{100, 101, 102} {
		if !res.Fills[i].Price.Equal(decimal.NewFromInt(want)) {
			t.Errorf("Fills[%d].Price = %s, want %d", i, res.Fills[i].Price, want)
		}
	}
	if got, _ := res.FirstFillPrice(); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("FirstFillPrice = %s, want 100", got)
	}

	_, asks := b.Depth()
	if len(asks) != 0 {
		t.Errorf("all ask levels should be consumed, got %+v", asks)
	}
}

func TestSubmit_PriceLimitStopsSweep(t *testing.T) {
	b := New("bazed-musd")
	mustSubmit(t, b, newOrder("s1", domain.SideSell, 100, 3))
	mustSubmit(t, b, newOrder("s2", domain.SideSell, 105, 3))

	res := mustSubmit(t, b, newOrder("b1", domain.SideBuy, 102, 6))

	if len(res.Fills) != 1 {
		t.Fatalf("len(Fills) = %d, want 1 (105 exceeds the buy limit)", len(res.Fills))
	}
	// Remainder rests at 102; no crossing with the 105 ask.
	bid, ask, hasBid, hasAsk := b.BestBidAsk()
	if !hasBid || !hasAsk {
		t.Fatal("both sides should be non-empty")
	}
	if !bid.LessThan(ask) {
		t.Errorf("book crossed at rest: bid %s >= ask %s", bid, ask)
	}
}

func TestSubmit_FIFOAtSamePrice(t *testing.T) {
	b := New("bazed-musd")
	mustSubmit(t, b, newOrder("early", domain.SideSell, 100, 5))
	mustSubmit(t, b, newOrder("late", domain.SideSell, 100, 5))

	res := mustSubmit(t, b, newOrder("b1", domain.SideBuy, 100, 5))

	if len(res.Fills) != 1 || res.Fills[0].MakerID != "early" {
		t.Fatalf("fills = %+v, want single fill against 'early'", res.Fills)
	}

	res = mustSubmit(t, b, newOrder("b2", domain.SideBuy, 100, 5))
	if len(res.Fills) != 1 || res.Fills[0].MakerID != "late" {
		t.Fatalf("fills = %+v, want single fill against 'late'", res.Fills)
	}
}

func TestSubmit_Validation(t *testing.T) {
	b := New("bazed-musd")

	cases := []struct {
		name  string
		order *domain.Order
	}{
		{"bad side", &domain.Order{OrderID: "x", Side: "hold", Price: decimal.NewFromInt(1), Quantity: decimal.NewFromInt(1)}},
		{"zero price", newOrder("x", domain.SideBuy, 0, 1)},
		{"negative price", newOrder("x", domain.SideBuy, -5, 1)},
		{"zero quantity", newOrder("x", domain.SideBuy, 10, 0)},
		{"missing id", &domain.Order{Side: domain.SideBuy, Price: decimal.NewFromInt(1), Quantity: decimal.NewFromInt(1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := b.Submit(tc.order)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Submit = %v, want ValidationError", err)
			}
		})
	}

	// Rejected submits leave no trace.
	bids, asks := b.Depth()
	if len(bids) != 0 || len(asks) != 0 {
		t.Error("rejected orders must not mutate the book")
	}
}

func TestCancel(t *testing.T) {
	b := New("bazed-musd")
	mustSubmit(t, b, newOrder("s1", domain.SideSell, 100, 10))

	e, err := b.Cancel("s1")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if e.OrderID != "s1" {
		t.Errorf("cancelled entry = %+v, want s1", e)
	}

	// Second cancel reports not found; no state change either time.
	if _, err := b.Cancel("s1"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("second Cancel = %v, want ErrOrderNotFound", err)
	}
	_, asks := b.Depth()
	if len(asks) != 0 {
		t.Errorf("asks = %+v, want empty after cancel", asks)
	}
}

func TestCancel_UnknownIsNotFound(t *testing.T) {
	b := New("bazed-musd")
	if _, err := b.Cancel("ghost"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("Cancel(ghost) = %v, want ErrOrderNotFound", err)
	}
}

func TestEstimateMarketPrice(t *testing.T) {
	b := New("bazed-musd")
	mustSubmit(t, b, newOrder("s1", domain.SideSell, 100, 5))
	mustSubmit(t, b, newOrder("s2", domain.SideSell, 110, 5))

	// Covered by the best level.
	got := b.EstimateMarketPrice(domain.SideBuy, decimal.NewFromInt(3))
	if !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("estimate(buy, 3) = %s, want 100", got)
	}

	// Needs the second level.
	got = b.EstimateMarketPrice(domain.SideBuy, decimal.NewFromInt(8))
	if !got.Equal(decimal.NewFromInt(110)) {
		t.Errorf("estimate(buy, 8) = %s, want 110", got)
	}

	// Exhausted side returns the last seen price, not an error.
	got = b.EstimateMarketPrice(domain.SideBuy, decimal.NewFromInt(50))
	if !got.Equal(decimal.NewFromInt(110)) {
		t.Errorf("estimate(buy, 50) = %s, want 110 (best effort)", got)
	}

	// Empty opposite side returns zero.
	got = b.EstimateMarketPrice(domain.SideSell, decimal.NewFromInt(1))
	if !got.IsZero() {
		t.Errorf("estimate(sell, 1) = %s, want 0", got)
	}
}

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	b := New("bazed-musd")
	mustSubmit(t, b, newOrder("s1", domain.SideSell, 100, 10))
	mustSubmit(t, b, newOrder("s2", domain.SideSell, 100, 5))
	mustSubmit(t, b, newOrder("s3", domain.SideSell, 105, 3))
	mustSubmit(t, b, newOrder("b1", domain.SideBuy, 90, 7))

	data, err := b.Snapshot().Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	snap, err := UnmarshalSnapshot(data)
	if err != nil {
		t.Fatalf("UnmarshalSnapshot: %v", err)
	}

	restored := New("bazed-musd")
	restored.Restore(snap)

	// The restored book must preserve FIFO: a taker consumes s1 before s2.
	res := mustSubmit(t, restored, newOrder("b2", domain.SideBuy, 100, 12))
	if len(res.Fills) != 2 {
		t.Fatalf("fills = %+v, want 2", res.Fills)
	}
	if res.Fills[0].MakerID != "s1" || res.Fills[1].MakerID != "s2" {
		t.Errorf("makers = %s,%s, want s1,s2 (FIFO preserved)", res.Fills[0].MakerID, res.Fills[1].MakerID)
	}

	// Identical behavior to the original book for the same order.
	resOrig := mustSubmit(t, b, newOrder("b2", domain.SideBuy, 100, 12))
	if len(resOrig.Fills) != len(res.Fills) {
		t.Fatalf("original and restored diverged: %d vs %d fills", len(resOrig.Fills), len(res.Fills))
	}
	for i := range res.Fills {
		if resOrig.Fills[i].MakerID != res.Fills[i].MakerID || !resOrig.Fills[i].Quantity.Equal(res.Fills[i].Quantity) {
			t.Errorf("fill %d diverged: %+v vs %+v", i, resOrig.Fills[i], res.Fills[i])
		}
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	pair := &domain.Pair{ID: 1, PairName: "bazed-musd"}

	if _, _, err := r.Get("bazed-musd"); !errors.Is(err, domain.ErrPairNotFound) {
		t.Errorf("Get before register = %v, want ErrPairNotFound", err)
	}

	if _, err := r.Register(pair); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := r.Register(pair); !errors.Is(err, domain.ErrDuplicatePair) {
		t.Errorf("second Register = %v, want ErrDuplicatePair", err)
	}

	b, p, err := r.Get("bazed-musd")
	if err != nil || b == nil || p.ID != 1 {
		t.Errorf("Get = (%v, %v, %v)", b, p, err)
	}
	if len(r.Pairs()) != 1 {
		t.Errorf("Pairs() = %d entries, want 1", len(r.Pairs()))
	}
}
