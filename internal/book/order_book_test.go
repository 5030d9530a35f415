package book_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir/internal/book"
)

func TestOrderBook_AddAndSnapshot(t *testing.T) {
	b := book.New("AAPL")
	b.Add(book.Order{ID: "bid1", Side: book.Buy, Price: 9900, Remaining: 10})
	b.Add(book.Order{ID: "bid2", Side: book.Buy, Price: 9950, Remaining: 5})
	b.Add(book.Order{ID: "ask1", Side: book.Sell, Price: 10100, Remaining: 7})

	snap := b.Snapshot(10)
	require.Len(t, snap.Bids, 2)
	assert.Equal(t, int64(9950), snap.Bids[0].Price) // descending
	assert.Equal(t, int64(9900), snap.Bids[1].Price)

	require.Len(t, snap.Asks, 1)
	assert.Equal(t, int64(10100), snap.Asks[0].Price)
}

func TestOrderBook_CancelRemovesEmptyLevel(t *testing.T) {
	b := book.New("AAPL")
	b.Add(book.Order{ID: "o1", Side: book.Buy, Price: 9900, Remaining: 10})

	assert.True(t, b.Contains("o1"))

	o, ok := b.Cancel("o1")
	require.True(t, ok)
	assert.Equal(t, "o1", o.ID)
	assert.False(t, b.Contains("o1"))

	_, _, ok = b.BestBid()
	assert.False(t, ok)
}

func TestOrderBook_CancelUnknown(t *testing.T) {
	b := book.New("AAPL")
	_, ok := b.Cancel("missing")
	assert.False(t, ok)
}

func TestOrderBook_MatchStep(t *testing.T) {
	b := book.New("AAPL")
	b.Add(book.Order{ID: "ask1", Side: book.Sell, Price: 10000, Remaining: 50})
	b.Add(book.Order{ID: "ask2", Side: book.Sell, Price: 10100, Remaining: 50})

	maker, price, filled, ok := b.MatchStep(book.Buy, 30)
	require.True(t, ok)
	assert.Equal(t, "ask1", maker.ID)
	assert.Equal(t, int64(10000), price)
	assert.Equal(t, uint64(30), filled)
	assert.Equal(t, uint64(20), maker.Remaining)

	_, level, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, uint64(20), level.TotalVolume())

	maker, price, filled, ok = b.MatchStep(book.Buy, 20)
	require.True(t, ok)
	assert.Equal(t, uint64(0), maker.Remaining)
	assert.False(t, b.Contains("ask1"))

	bestPrice, _, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, int64(10100), bestPrice)
}

func TestOrderBook_MatchStepEmptySide(t *testing.T) {
	b := book.New("AAPL")
	_, _, _, ok := b.MatchStep(book.Buy, 10)
	assert.False(t, ok)
}
