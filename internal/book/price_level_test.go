package book_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir/internal/book"
)

func TestPriceLevel_PushAndMatchPartial(t *testing.T) {
	l := book.NewPriceLevel(10000)
	l.PushBack(book.Order{ID: "a", Remaining: 40})
	l.PushBack(book.Order{ID: "b", Remaining: 60})

	assert.Equal(t, uint64(100), l.TotalVolume())

	maker, filled, ok := l.MatchPartial(40)
	require.True(t, ok)
	assert.Equal(t, "a", maker.ID)
	assert.Equal(t, uint64(40), filled)
	assert.Equal(t, uint64(0), maker.Remaining)
	assert.Equal(t, uint64(60), l.TotalVolume())
	assert.Equal(t, 1, l.Len())

	maker, filled, ok = l.MatchPartial(10)
	require.True(t, ok)
	assert.Equal(t, "b", maker.ID)
	assert.Equal(t, uint64(10), filled)
	assert.Equal(t, uint64(50), maker.Remaining)
	assert.Equal(t, uint64(50), l.TotalVolume())
	assert.Equal(t, 1, l.Len())
}

func TestPriceLevel_MatchPartialEmpty(t *testing.T) {
	l := book.NewPriceLevel(10000)
	_, _, ok := l.MatchPartial(10)
	assert.False(t, ok)
}

func TestPriceLevel_Remove(t *testing.T) {
	l := book.NewPriceLevel(10000)
	l.PushBack(book.Order{ID: "a", Remaining: 40})
	l.PushBack(book.Order{ID: "b", Remaining: 60})

	o, ok := l.Remove("a")
	require.True(t, ok)
	assert.Equal(t, uint64(40), o.Remaining)
	assert.Equal(t, uint64(60), l.TotalVolume())
	assert.Equal(t, 1, l.Len())

	_, ok = l.Remove("a")
	assert.False(t, ok)
}

func TestPriceLevel_FIFOOrder(t *testing.T) {
	l := book.NewPriceLevel(10000)
	l.PushBack(book.Order{ID: "a", Remaining: 10})
	l.PushBack(book.Order{ID: "b", Remaining: 10})
	l.PushBack(book.Order{ID: "c", Remaining: 10})

	maker, _, _ := l.MatchPartial(10)
	assert.Equal(t, "a", maker.ID)
	maker, _, _ = l.MatchPartial(10)
	assert.Equal(t, "b", maker.ID)
	maker, _, _ = l.MatchPartial(10)
	assert.Equal(t, "c", maker.ID)

	assert.True(t, l.IsEmpty())
}
