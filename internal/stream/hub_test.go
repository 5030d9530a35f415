package stream_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir/internal/book"
	"fenrir/internal/marketdata"
	"fenrir/internal/report"
	"fenrir/internal/stream"
)

func startHub(t *testing.T) *stream.Hub {
	t.Helper()
	hub := stream.NewHub()
	done := make(chan struct{})
	go hub.Run(done)
	t.Cleanup(func() { close(done) })
	return hub
}

func TestHub_RoutesFrameToSubscribedSymbolOnly(t *testing.T) {
	hub := startHub(t)

	aapl := &stream.Client{ID: "c1", Symbols: map[string]bool{"AAPL": true}, Send: make(chan stream.Frame, 4)}
	all := &stream.Client{ID: "c2", Send: make(chan stream.Frame, 4)}
	hub.Register(aapl)
	hub.Register(all)

	hub.EmitExecution(report.Execution{Symbol: "MSFT", OrderID: "o1"})

	select {
	case f := <-all.Send:
		assert.Equal(t, "MSFT", f.Symbol)
	case <-time.After(time.Second):
		t.Fatal("unsubscribed-all client did not receive frame")
	}

	select {
	case <-aapl.Send:
		t.Fatal("AAPL-only client should not receive an MSFT frame")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_EmitBookSnapshotAndDelta(t *testing.T) {
	hub := startHub(t)
	c := &stream.Client{ID: "c1", Send: make(chan stream.Frame, 4)}
	hub.Register(c)

	hub.EmitBookSnapshot("AAPL", book.Snapshot{
		Bids: []book.PriceVolume{{Price: 100, Volume: 10}},
	}, 1)

	select {
	case f := <-c.Send:
		require.Equal(t, stream.FrameOrderBookUpdate, f.Type)
		require.NotNil(t, f.Book)
		assert.Equal(t, [2]int64{100, 10}, f.Book.Bids[0])
	case <-time.After(time.Second):
		t.Fatal("did not receive snapshot frame")
	}

	hub.EmitBookDelta("AAPL", []marketdata.Delta{{Price: 100, Volume: 20, Op: marketdata.DeltaUpdate}}, nil, 2)

	select {
	case f := <-c.Send:
		require.Equal(t, stream.FrameOrderBookDelta, f.Type)
		require.NotNil(t, f.Delta)
		assert.Equal(t, uint64(2), f.Delta.Sequence)
		require.Len(t, f.Delta.BidChanges, 1)
		assert.Equal(t, "Update", f.Delta.BidChanges[0].Op)
		assert.Empty(t, f.Delta.AskChanges)
	case <-time.After(time.Second):
		t.Fatal("did not receive delta frame")
	}
}

func TestHub_DisconnectsSlowNonBackpressuringClient(t *testing.T) {
	hub := startHub(t)
	c := &stream.Client{ID: "slow", Send: make(chan stream.Frame, 1), Backpressuring: false}
	hub.Register(c)

	// Fill the buffer, then push more — the client should be dropped (its
	// Send channel closed) rather than stall the hub.
	for i := 0; i < 5; i++ {
		hub.EmitExecution(report.Execution{Symbol: "AAPL"})
	}

	require.Eventually(t, func() bool {
		for {
			select {
			case _, ok := <-c.Send:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, time.Second, 10*time.Millisecond)
}
