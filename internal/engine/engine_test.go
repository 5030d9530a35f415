package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir/internal/book"
	"fenrir/internal/engine"
)

func newOrder(id string, side book.Side, kind book.Kind, price int64, qty uint64) book.Order {
	return book.Order{
		ID:        id,
		Symbol:    "AAPL",
		Side:      side,
		Kind:      kind,
		Price:     price,
		Quantity:  qty,
		Remaining: qty,
		ClientID:  id + "-client",
	}
}

// S1 — exact match.
func TestSubmit_ExactMatch(t *testing.T) {
	e := engine.New("AAPL")

	reps := e.Submit(newOrder("S1", book.Sell, book.Limit, 10000, 100))
	assert.Empty(t, reps)

	reps = e.Submit(newOrder("S2", book.Buy, book.Limit, 10000, 100))
	require.Len(t, reps, 2)

	taker, maker := reps[0], reps[1]
	assert.Equal(t, taker.ExecutionID, maker.ExecutionID)
	assert.False(t, taker.IsMaker)
	assert.True(t, maker.IsMaker)

	assert.Equal(t, "S2", taker.OrderID)
	assert.Equal(t, "Buy", taker.Side)
	assert.Equal(t, int64(10000), taker.Price)
	assert.Equal(t, uint64(100), taker.Quantity)
	assert.Equal(t, uint64(0), taker.Remaining)
	assert.Equal(t, "S1", taker.CounterpartyID)

	assert.Equal(t, "S1", maker.OrderID)
	assert.Equal(t, "Sell", maker.Side)
	assert.Equal(t, int64(10000), maker.Price)
	assert.Equal(t, uint64(100), maker.Quantity)
	assert.Equal(t, uint64(0), maker.Remaining)
	assert.Equal(t, "S2", maker.CounterpartyID)

	_, _, ok := e.Book.BestBid()
	assert.False(t, ok)
	_, _, ok = e.Book.BestAsk()
	assert.False(t, ok)
}

// S2 — partial match with residual maker.
func TestSubmit_PartialMatchResidualMaker(t *testing.T) {
	e := engine.New("AAPL")

	e.Submit(newOrder("S1", book.Sell, book.Limit, 10100, 200))

	reps := e.Submit(newOrder("S2", book.Buy, book.Limit, 10100, 50))
	require.Len(t, reps, 2)
	assert.Equal(t, uint64(50), reps[0].Quantity)

	reps = e.Submit(newOrder("S3", book.Buy, book.Limit, 10100, 70))
	require.Len(t, reps, 2)
	assert.Equal(t, uint64(70), reps[0].Quantity)
	assert.Equal(t, "S1", reps[1].OrderID)
	assert.Equal(t, uint64(80), reps[1].Remaining)

	_, level, ok := e.Book.BestAsk()
	require.True(t, ok)
	assert.Equal(t, uint64(80), level.TotalVolume())
}

// S3 — multi-level market sweep.
func TestSubmit_MultiLevelMarketSweep(t *testing.T) {
	e := engine.New("AAPL")

	e.Submit(newOrder("A", book.Sell, book.Limit, 10000, 50))
	e.Submit(newOrder("B", book.Sell, book.Limit, 10100, 30))
	e.Submit(newOrder("C", book.Sell, book.Limit, 10200, 20))

	reps := e.Submit(newOrder("T", book.Buy, book.Market, 0, 80))
	require.Len(t, reps, 4)

	assert.Equal(t, "A", reps[0].CounterpartyID)
	assert.Equal(t, uint64(50), reps[0].Quantity)
	assert.Equal(t, uint64(30), reps[0].Remaining)

	assert.Equal(t, "B", reps[2].CounterpartyID)
	assert.Equal(t, uint64(30), reps[2].Quantity)
	assert.Equal(t, uint64(0), reps[2].Remaining)

	_, level, ok := e.Book.BestAsk()
	require.True(t, ok)
	assert.Equal(t, int64(10200), level.Price)
	assert.Equal(t, uint64(20), level.TotalVolume())
}

// S4 — price-time priority at one level.
func TestSubmit_PriceTimePriority(t *testing.T) {
	e := engine.New("AAPL")

	e.Submit(newOrder("A", book.Sell, book.Limit, 10000, 40))
	e.Submit(newOrder("B", book.Sell, book.Limit, 10000, 60))

	reps := e.Submit(newOrder("T", book.Buy, book.Limit, 10000, 50))
	require.Len(t, reps, 4)

	assert.Equal(t, "A", reps[0].CounterpartyID)
	assert.Equal(t, uint64(40), reps[0].Quantity)
	assert.Equal(t, uint64(10), reps[0].Remaining)

	assert.Equal(t, "B", reps[2].CounterpartyID)
	assert.Equal(t, uint64(10), reps[2].Quantity)
	assert.Equal(t, uint64(0), reps[2].Remaining)

	_, level, ok := e.Book.BestAsk()
	require.True(t, ok)
	assert.Equal(t, uint64(50), level.TotalVolume())
}

// S5 — cancel is idempotent.
func TestCancel_Idempotent(t *testing.T) {
	e := engine.New("AAPL")

	e.Submit(newOrder("S1", book.Sell, book.Limit, 10500, 50))

	reps := e.Cancel("S1")
	require.Len(t, reps, 1)
	assert.Equal(t, uint64(0), reps[0].Quantity)
	assert.Equal(t, uint64(0), reps[0].Remaining)
	assert.Equal(t, "system", reps[0].CounterpartyID)

	snap := e.Book.Snapshot(10)
	assert.Empty(t, snap.Bids)
	assert.Empty(t, snap.Asks)

	reps = e.Cancel("S1")
	assert.Empty(t, reps)
}

func TestSubmit_EmptyBookLimitRests(t *testing.T) {
	e := engine.New("AAPL")
	reps := e.Submit(newOrder("S1", book.Buy, book.Limit, 9900, 10))
	assert.Empty(t, reps)

	snap := e.Book.Snapshot(10)
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, int64(9900), snap.Bids[0].Price)
}

func TestSubmit_MarketAgainstEmptyBookDiscarded(t *testing.T) {
	e := engine.New("AAPL")
	reps := e.Submit(newOrder("S1", book.Buy, book.Market, 0, 10))
	assert.Empty(t, reps)

	snap := e.Book.Snapshot(10)
	assert.Empty(t, snap.Bids)
	assert.Empty(t, snap.Asks)
}

// No-crossing-book invariant: after any sequence of submits, the best bid
// must be strictly below the best ask whenever both sides are non-empty.
func TestInvariant_NoCrossingBook(t *testing.T) {
	e := engine.New("AAPL")

	e.Submit(newOrder("B1", book.Buy, book.Limit, 9900, 10))
	e.Submit(newOrder("A1", book.Sell, book.Limit, 10100, 10))
	e.Submit(newOrder("B2", book.Buy, book.Limit, 9950, 5))

	bid, _, bidOk := e.Book.BestBid()
	ask, _, askOk := e.Book.BestAsk()
	if bidOk && askOk {
		assert.Less(t, bid, ask)
	}
}
