package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexlab-io/matchbook/internal/domain"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testPair(t *testing.T, s *PairStore) *domain.Pair {
	t.Helper()
	p := &domain.Pair{
		BaseTokenSymbol:  "bazed",
		QuoteTokenSymbol: "musd",
		BaseToken:        "0x1111111111111111111111111111111111111111",
		QuoteToken:       "0x2222222222222222222222222222222222222222",
		BaseTokenType:    1,
		QuoteTokenType:   1,
	}
	require.NoError(t, s.Create(context.Background(), p))
	return p
}

func TestPairStoreCreateAndGet(t *testing.T) {
	db := testDB(t)
	pairs := NewPairStore(db)
	ctx := context.Background()

	p := testPair(t, pairs)
	assert.Equal(t, "bazed-musd", p.PairName)
	assert.NotZero(t, p.ID)
	assert.False(t, p.CreatedAt.IsZero())

	got, err := pairs.GetByName(ctx, "bazed-musd")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, p.BaseToken, got.BaseToken)
	assert.Nil(t, got.TokenID)
}

func TestPairStoreDuplicate(t *testing.T) {
	db := testDB(t)
	pairs := NewPairStore(db)
	ctx := context.Background()

	testPair(t, pairs)
	err := pairs.Create(ctx, &domain.Pair{
		BaseTokenSymbol:  "bazed",
		QuoteTokenSymbol: "musd",
	})
	assert.ErrorIs(t, err, domain.ErrDuplicatePair)
}

func TestPairStoreNotFound(t *testing.T) {
	db := testDB(t)
	pairs := NewPairStore(db)

	_, err := pairs.GetByName(context.Background(), "nope-nope")
	assert.ErrorIs(t, err, domain.ErrPairNotFound)
}

func TestPairStoreTokenIDRoundTrip(t *testing.T) {
	db := testDB(t)
	pairs := NewPairStore(db)
	ctx := context.Background()

	tokenID := int64(42)
	p := &domain.Pair{
		BaseTokenSymbol:  "card",
		QuoteTokenSymbol: "musd",
		TokenID:          &tokenID,
	}
	require.NoError(t, pairs.Create(ctx, p))

	got, err := pairs.GetByName(ctx, "card-musd")
	require.NoError(t, err)
	require.NotNil(t, got.TokenID)
	assert.Equal(t, int64(42), *got.TokenID)
}

func TestPairStoreListJoinsSnapshots(t *testing.T) {
	db := testDB(t)
	pairs := NewPairStore(db)
	snaps := NewSnapshotStore(db)
	ctx := context.Background()

	p1 := testPair(t, pairs)
	p2 := &domain.Pair{BaseTokenSymbol: "card", QuoteTokenSymbol: "musd"}
	require.NoError(t, pairs.Create(ctx, p2))

	require.NoError(t, snaps.Upsert(ctx, p1.ID, []byte(`{"pair":"bazed-musd"}`)))

	list, err := pairs.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, p1.ID, list[0].Pair.ID)
	assert.JSONEq(t, `{"pair":"bazed-musd"}`, string(list[0].Snapshot))
	assert.Nil(t, list[1].Snapshot)
}

func TestOrderStoreRoundTrip(t *testing.T) {
	db := testDB(t)
	orders := NewOrderStore(db)
	ctx := context.Background()

	o := &domain.Order{
		OrderID:   "bazed-musd:0xabc:buy:5:@100.5:1700000000000",
		PairName:  "bazed-musd",
		Side:      domain.SideBuy,
		Price:     decimal.RequireFromString("100.5"),
		Quantity:  decimal.RequireFromString("5"),
		Creator:   "0xabc",
		Signature: "0xsig",
		Status:    domain.OrderStatusOpen,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, orders.Save(ctx, o))

	got, err := orders.Get(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, o.Creator, got.Creator)
	assert.True(t, got.Price.Equal(o.Price))
	assert.True(t, got.Quantity.Equal(o.Quantity))
	assert.Equal(t, domain.OrderStatusOpen, got.Status)
}

func TestOrderStoreGetMissing(t *testing.T) {
	db := testDB(t)
	orders := NewOrderStore(db)

	_, err := orders.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOrderStoreUpdateStatus(t *testing.T) {
	db := testDB(t)
	orders := NewOrderStore(db)
	ctx := context.Background()

	o := &domain.Order{
		OrderID:   "id-1",
		PairName:  "bazed-musd",
		Side:      domain.SideSell,
		Price:     decimal.NewFromInt(10),
		Quantity:  decimal.NewFromInt(1),
		Creator:   "0xabc",
		Status:    domain.OrderStatusOpen,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, orders.Save(ctx, o))

	require.NoError(t, orders.UpdateStatus(ctx, "id-1", domain.OrderStatusMatched))
	got, err := orders.Get(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusMatched, got.Status)

	err = orders.UpdateStatus(ctx, "id-2", domain.OrderStatusCancelled)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOrderStoreListOpenByCreator(t *testing.T) {
	db := testDB(t)
	orders := NewOrderStore(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	save := func(id, creator string, status domain.OrderStatus, at time.Time) {
		require.NoError(t, orders.Save(ctx, &domain.Order{
			OrderID:   id,
			PairName:  "bazed-musd",
			Side:      domain.SideSell,
			Price:     decimal.NewFromInt(10),
			Quantity:  decimal.NewFromInt(1),
			Creator:   creator,
			Status:    status,
			CreatedAt: at,
		}))
	}
	save("o-2", "0xabc", domain.OrderStatusPartiallyFilled, base.Add(time.Minute))
	save("o-1", "0xabc", domain.OrderStatusOpen, base)
	save("o-3", "0xabc", domain.OrderStatusMatched, base.Add(2*time.Minute))
	save("o-4", "0xabc", domain.OrderStatusCancelled, base.Add(3*time.Minute))
	save("o-5", "0xdef", domain.OrderStatusOpen, base)

	got, err := orders.ListOpenByCreator(ctx, "0xabc")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "o-1", got[0].OrderID)
	assert.Equal(t, "o-2", got[1].OrderID)
}

func TestSnapshotStoreUpsertOverwrites(t *testing.T) {
	db := testDB(t)
	pairs := NewPairStore(db)
	snaps := NewSnapshotStore(db)
	ctx := context.Background()

	p := testPair(t, pairs)

	got, err := snaps.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, snaps.Upsert(ctx, p.ID, []byte(`{"v":1}`)))
	require.NoError(t, snaps.Upsert(ctx, p.ID, []byte(`{"v":2}`)))

	got, err = snaps.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got))
}

func TestTradeStoreRoundTrip(t *testing.T) {
	db := testDB(t)
	trades := NewTradeStore(db)
	ctx := context.Background()

	tr := &domain.Trade{
		TradeID:     "trade-1",
		TxHash:      "0xdeadbeef",
		SubmittedAt: time.Now().UTC(),
		CallArgs:    `{"pair":"bazed-musd"}`,
		Status:      domain.TradeStatusOpen,
	}
	require.NoError(t, trades.Save(ctx, tr))

	got, err := trades.Get(ctx, "trade-1")
	require.NoError(t, err)
	assert.Equal(t, tr.TxHash, got.TxHash)
	assert.Equal(t, domain.TradeStatusOpen, got.Status)

	require.NoError(t, trades.UpdateStatus(ctx, "trade-1", domain.TradeStatusFailed))
	got, err = trades.Get(ctx, "trade-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusFailed, got.Status)

	_, err = trades.Get(ctx, "trade-2")
	assert.ErrorIs(t, err, domain.ErrTradeNotFound)
}

func TestSampleStoreRangeQuery(t *testing.T) {
	db := testDB(t)
	pairs := NewPairStore(db)
	samples := NewSampleStore(db)
	ctx := context.Background()

	p := testPair(t, pairs)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, samples.Save(ctx, &domain.MarketPriceSample{
			PairID:    p.ID,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Price:     decimal.NewFromInt(int64(100 + i)),
		}))
	}

	got, err := samples.ListByPairInRange(ctx, p.ID, base.Add(time.Minute), base.Add(4*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].Price.Equal(decimal.NewFromInt(101)))
	assert.True(t, got[2].Price.Equal(decimal.NewFromInt(103)))

	latest, err := samples.Latest(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Price.Equal(decimal.NewFromInt(104)))

	none, err := samples.Latest(ctx, p.ID+1)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSampleStoreSubSecondOrdering(t *testing.T) {
	db := testDB(t)
	pairs := NewPairStore(db)
	samples := NewSampleStore(db)
	ctx := context.Background()

	p := testPair(t, pairs)
	whole := time.Date(2026, 3, 1, 0, 0, 1, 0, time.UTC)
	fractional := whole.Add(500 * time.Millisecond)

	// insert out of time order; the fixed-width text must still sort
	// the whole-second row first
	require.NoError(t, samples.Save(ctx, &domain.MarketPriceSample{
		PairID: p.ID, Timestamp: fractional, Price: decimal.NewFromInt(2),
	}))
	require.NoError(t, samples.Save(ctx, &domain.MarketPriceSample{
		PairID: p.ID, Timestamp: whole, Price: decimal.NewFromInt(1),
	}))

	got, err := samples.ListByPairInRange(ctx, p.ID, whole, whole.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Price.Equal(decimal.NewFromInt(1)))
	assert.True(t, got[1].Price.Equal(decimal.NewFromInt(2)))

	// a fractional lower bound must exclude the earlier whole second
	got, err = samples.ListByPairInRange(ctx, p.ID, whole.Add(250*time.Millisecond), whole.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Price.Equal(decimal.NewFromInt(2)))

	latest, err := samples.Latest(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Price.Equal(decimal.NewFromInt(2)))
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := WithRetry(ctx, 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("busy")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = WithRetry(ctx, 2, time.Millisecond, func() error {
		calls++
		return errors.New("busy")
	})
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestWithRetryStopsOnPermanentErrors(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := WithRetry(ctx, 5, time.Millisecond, func() error {
		calls++
		return errors.New("insert order: constraint failed: UNIQUE constraint failed: orders.order_id (1555)")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	calls = 0
	err = WithRetry(ctx, 5, time.Millisecond, func() error {
		calls++
		return domain.ErrOrderNotFound
	})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	assert.Equal(t, 1, calls)
}
