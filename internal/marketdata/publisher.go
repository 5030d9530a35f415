package marketdata

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"fenrir/internal/book"
	"fenrir/internal/report"
)

// Emitter receives the frames the publisher derives, for forwarding to
// streaming subscribers (spec §6). All methods must be safe to call
// concurrently and must not block the publisher for long — a slow
// downstream should buffer or drop on its own side, not stall MDP state
// updates (spec §5: "a slow subscriber blocks the engine only if it is on
// the critical fan-out path"; the streaming subscriber path is explicitly
// not critical).
type Emitter interface {
	EmitExecution(report.Execution)
	EmitCandle(symbol, interval string, c Candle)
	EmitStats(symbol string, v View)
	EmitBookSnapshot(symbol string, snap book.Snapshot, sequence uint64)
	EmitBookDelta(symbol string, bidChanges, askChanges []Delta, sequence uint64)
}

// noopEmitter discards every frame; used when the publisher is built
// without a streaming transport (e.g. in tests).
type noopEmitter struct{}

func (noopEmitter) EmitExecution(report.Execution)                 {}
func (noopEmitter) EmitCandle(string, string, Candle)               {}
func (noopEmitter) EmitStats(string, View)                          {}
func (noopEmitter) EmitBookSnapshot(string, book.Snapshot, uint64)  {}
func (noopEmitter) EmitBookDelta(string, []Delta, []Delta, uint64)  {}

// Config tunes the publisher's retained state and publish cadence
// (spec §4.5).
type Config struct {
	TapeSize         int
	CandleRetention  map[string]int
	DeltaThreshold   int
	SnapshotInterval time.Duration
	DefaultDepth     int
	StatsWindow      time.Duration
}

type symbolState struct {
	tape           *Tape
	candles        *symbolCandles
	stats          *Stats
	tracker        *Tracker
	snapshotSource func() (book.Snapshot, bool)
}

// Publisher is the market-data publisher (spec §4.5): it implements
// sequencer.Sink to ingest the execution stream and derives, per symbol,
// the tape, candle table, 24h stats, and order-book deltas.
type Publisher struct {
	cfg     Config
	emitter Emitter

	mu      sync.RWMutex
	symbols map[string]*symbolState
}

// NewPublisher builds a Publisher. A nil emitter discards every derived
// frame (state is still queryable via the methods below).
func NewPublisher(cfg Config, emitter Emitter) *Publisher {
	if emitter == nil {
		emitter = noopEmitter{}
	}
	if cfg.DefaultDepth <= 0 {
		cfg.DefaultDepth = 20
	}
	return &Publisher{cfg: cfg, emitter: emitter, symbols: make(map[string]*symbolState)}
}

// Register wires symbol into the publisher, with snapshotSource used by the
// periodic snapshot/delta loop to pull the current book state.
func (p *Publisher) Register(symbol string, snapshotSource func() (book.Snapshot, bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.symbols[symbol] = &symbolState{
		tape:           NewTape(p.cfg.TapeSize),
		candles:        newSymbolCandles(p.cfg.CandleRetention),
		stats:          NewStats(p.cfg.StatsWindow),
		tracker:        NewTracker(),
		snapshotSource: snapshotSource,
	}
}

func (p *Publisher) state(symbol string) (*symbolState, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.symbols[symbol]
	return s, ok
}

// Publish implements sequencer.Sink: every execution report updates the
// tape, and every actual fill (Quantity > 0; cancel confirmations carry
// Quantity 0 and are excluded) updates the candle table and 24h stats.
func (p *Publisher) Publish(symbol string, reports []report.Execution) {
	st, ok := p.state(symbol)
	if !ok {
		log.Warn().Str("symbol", symbol).Msg("market data: publish for unregistered symbol")
		return
	}

	for _, r := range reports {
		st.tape.Push(r)
		p.emitter.EmitExecution(r)

		if r.Quantity == 0 {
			continue
		}
		st.candles.update(r.Price, r.Quantity, r.Timestamp)
		st.stats.Record(r.Price, r.Quantity, r.Timestamp)

		for _, iv := range Intervals {
			if c, ok := st.candles.live(iv.Name); ok {
				p.emitter.EmitCandle(symbol, iv.Name, c)
			}
		}
		p.emitter.EmitStats(symbol, st.stats.Snapshot(r.Timestamp))
	}
}

// RunSnapshotLoop periodically diffs every registered symbol's current book
// snapshot against the last published one, emitting a delta when the change
// count clears DeltaThreshold and always emitting a full snapshot every
// SnapshotInterval for resync (spec §4.5).
func (p *Publisher) RunSnapshotLoop(ctx context.Context) {
	interval := p.cfg.SnapshotInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishSnapshots()
		}
	}
}

func (p *Publisher) publishSnapshots() {
	p.mu.RLock()
	snapshot := make(map[string]*symbolState, len(p.symbols))
	for sym, st := range p.symbols {
		snapshot[sym] = st
	}
	p.mu.RUnlock()

	for symbol, st := range snapshot {
		snap, ok := st.snapshotSource()
		if !ok {
			continue
		}

		bidChanges, askChanges, seq := st.tracker.Diff(snap)
		if len(bidChanges)+len(askChanges) >= p.cfg.DeltaThreshold {
			p.emitter.EmitBookDelta(symbol, bidChanges, askChanges, seq)
		}
		p.emitter.EmitBookSnapshot(symbol, snap, seq)
	}
}

// LatestExecutions returns up to limit of symbol's most recent executions.
func (p *Publisher) LatestExecutions(symbol string, limit int) ([]report.Execution, bool) {
	st, ok := p.state(symbol)
	if !ok {
		return nil, false
	}
	return st.tape.Latest(limit), true
}

// Candles returns up to limit candles (live bucket first) for
// (symbol, interval).
func (p *Publisher) Candles(symbol, interval string, limit int) ([]Candle, bool) {
	st, ok := p.state(symbol)
	if !ok {
		return nil, false
	}
	return st.candles.candles(interval, limit), true
}

// Statistics returns symbol's rolling 24h statistics as of now.
func (p *Publisher) Statistics(symbol string, now time.Time) (View, bool) {
	st, ok := p.state(symbol)
	if !ok {
		return View{}, false
	}
	return st.stats.Snapshot(now), true
}

// OrderBookSnapshot pulls symbol's current book snapshot at depth directly
// from its registered source (not from the tracker's cached baseline).
func (p *Publisher) OrderBookSnapshot(symbol string, depth int) (book.Snapshot, bool) {
	st, ok := p.state(symbol)
	if !ok {
		return book.Snapshot{}, false
	}
	if depth <= 0 {
		depth = p.cfg.DefaultDepth
	}
	snap, ok := st.snapshotSource()
	if !ok {
		return book.Snapshot{}, false
	}
	if depth < len(snap.Bids) {
		snap.Bids = snap.Bids[:depth]
	}
	if depth < len(snap.Asks) {
		snap.Asks = snap.Asks[:depth]
	}
	return snap, true
}
