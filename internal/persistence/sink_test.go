package persistence_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tomb "gopkg.in/tomb.v2"

	"fenrir/internal/persistence"
	"fenrir/internal/report"
)

func startSink(t *testing.T, cfg persistence.Config, store persistence.Store, dead persistence.DeadLetterSink) (*persistence.Sink, *tomb.Tomb) {
	t.Helper()
	sink := persistence.New(cfg, store, dead, nil)
	var tb tomb.Tomb
	tb.Go(func() error { return sink.Run(&tb) })
	t.Cleanup(func() {
		tb.Kill(nil)
		_ = tb.Wait()
	})
	return sink, &tb
}

func TestSink_CommitsBatchOnSizeThreshold(t *testing.T) {
	store := persistence.NewMemStore(nil)
	sink, _ := startSink(t, persistence.Config{BatchSize: 2, BatchInterval: time.Hour}, store, nil)

	sink.Publish("AAPL", []report.Execution{
		{ExecutionID: "e1", CounterpartyID: "c1", Quantity: 10, Price: 100, Side: "Buy"},
		{ExecutionID: "e1", CounterpartyID: "c2", Quantity: 10, Price: 100, Side: "Sell"},
	})

	require.Eventually(t, func() bool { return store.Count() == 2 }, time.Second, time.Millisecond)
}

func TestSink_CommitsBatchOnIntervalWithPartialBatch(t *testing.T) {
	store := persistence.NewMemStore(nil)
	sink, _ := startSink(t, persistence.Config{BatchSize: 100, BatchInterval: 10 * time.Millisecond}, store, nil)

	sink.Publish("AAPL", []report.Execution{
		{ExecutionID: "e1", CounterpartyID: "c1", Quantity: 10, Price: 100, Side: "Buy"},
	})

	require.Eventually(t, func() bool { return store.Count() == 1 }, time.Second, time.Millisecond)
}

func TestSink_RetriesTransientFailureThenSucceeds(t *testing.T) {
	var attempts int32
	store := persistence.NewMemStore(func(persistence.Batch) error {
		if atomic.AddInt32(&attempts, 1) <= 2 {
			return errors.New("transient store failure")
		}
		return nil
	})

	sink, _ := startSink(t, persistence.Config{
		BatchSize: 1, BatchInterval: 10 * time.Millisecond,
		RetryBaseDelay: 5 * time.Millisecond, RetryMaxDelay: 20 * time.Millisecond, MaxRetries: 5,
	}, store, nil)

	sink.Publish("AAPL", []report.Execution{
		{ExecutionID: "e1", CounterpartyID: "c1", Quantity: 10, Price: 100, Side: "Buy"},
	})

	require.Eventually(t, func() bool { return store.Count() == 1 }, 2*time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, int(atomic.LoadInt32(&attempts)), 3)
}

type recordingDeadLetter struct {
	count atomic.Int32
}

func (d *recordingDeadLetter) DeadLetter(b persistence.Batch, err error) {
	d.count.Add(1)
}

func TestSink_ExhaustsRetriesThenDeadLetters(t *testing.T) {
	store := persistence.NewMemStore(func(persistence.Batch) error {
		return errors.New("permanent store failure")
	})
	dl := &recordingDeadLetter{}

	sink, _ := startSink(t, persistence.Config{
		BatchSize: 1, BatchInterval: 10 * time.Millisecond,
		RetryBaseDelay: 2 * time.Millisecond, RetryMaxDelay: 5 * time.Millisecond, MaxRetries: 2,
	}, store, dl)

	sink.Publish("AAPL", []report.Execution{
		{ExecutionID: "e1", CounterpartyID: "c1", Quantity: 10, Price: 100, Side: "Buy"},
	})

	require.Eventually(t, func() bool { return dl.count.Load() >= 1 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, 0, store.Count())
}

func TestSink_IdempotentReplayYieldsSameCount(t *testing.T) {
	store := persistence.NewMemStore(nil)
	sink, _ := startSink(t, persistence.Config{BatchSize: 1, BatchInterval: time.Hour}, store, nil)

	exec := report.Execution{ExecutionID: "e1", CounterpartyID: "c1", Quantity: 10, Price: 100, Side: "Buy"}
	sink.Publish("AAPL", []report.Execution{exec})
	sink.Publish("AAPL", []report.Execution{exec})

	require.Eventually(t, func() bool { return store.Count() == 1 }, time.Second, time.Millisecond)
}

func TestSink_BalanceDeltaAttributedToOwningClient(t *testing.T) {
	var got persistence.Batch
	store := persistence.NewMemStore(func(b persistence.Batch) error {
		got = b
		return nil
	})

	sink, _ := startSink(t, persistence.Config{BatchSize: 1, BatchInterval: time.Hour}, store, nil)

	sink.Publish("AAPL", []report.Execution{
		{ExecutionID: "e1", OrderID: "taker-order", ClientID: "alice", CounterpartyID: "maker-order", Quantity: 10, Price: 100, Side: "Buy"},
	})

	require.Eventually(t, func() bool { return store.Count() == 1 }, time.Second, time.Millisecond)

	require.Len(t, got.Balances, 2)
	for _, delta := range got.Balances {
		assert.Equal(t, "alice", delta.ClientID)
		assert.NotEqual(t, "maker-order", delta.ClientID)
	}
}

func TestSink_Drain(t *testing.T) {
	store := persistence.NewMemStore(nil)
	sink, _ := startSink(t, persistence.Config{BatchSize: 1, BatchInterval: time.Millisecond}, store, nil)

	sink.Publish("AAPL", []report.Execution{{ExecutionID: "e1", CounterpartyID: "c1", Quantity: 1, Price: 1}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sink.Drain(ctx))
}
