// Package engine implements the per-symbol matching engine: it consumes
// admitted orders and cancels one at a time, drives matching against the
// order book, and emits execution reports (spec §4.3).
//
// An Engine is single-writer: the sequencer is the only caller of Submit and
// Cancel for a given symbol, and the matching inner loop runs synchronously
// to completion between calls — it never yields mid-order (spec §5).
package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"fenrir/internal/book"
	"fenrir/internal/report"
)

// Engine owns one symbol's order book exclusively; no locking is required
// because the sequencer never calls it concurrently (spec §5).
type Engine struct {
	Symbol string
	Book   *book.OrderBook
	log    zerolog.Logger
}

// New creates a matching engine for symbol with an empty book.
func New(symbol string) *Engine {
	return &Engine{
		Symbol: symbol,
		Book:   book.New(symbol),
		log:    log.With().Str("component", "engine").Str("symbol", symbol).Logger(),
	}
}

// Submit processes one admitted order through the matching algorithm
// (spec §4.3 step 2-3) and returns the execution reports it generated, in
// emission order (taker before maker within each fill).
func (e *Engine) Submit(o book.Order) []report.Execution {
	var out []report.Execution

	for o.Remaining > 0 {
		makerSide := o.Side.Opposite()
		_, _, hasOpposite := bestPrice(e.Book, makerSide)
		if !hasOpposite {
			break
		}

		if !e.priceChecksPass(o) {
			break
		}

		maker, fillPrice, filled, ok := e.Book.MatchStep(o.Side, o.Remaining)
		if !ok {
			break
		}

		o.Remaining -= filled
		fillID := uuid.NewString()
		ts := time.Now()

		taker := report.Execution{
			ExecutionID:    fillID,
			OrderID:        o.ID,
			ClientID:       o.ClientID,
			CounterpartyID: maker.ID,
			Symbol:         o.Symbol,
			Side:           o.Side.String(),
			Price:          fillPrice,
			Quantity:       filled,
			Remaining:      o.Remaining,
			Timestamp:      ts,
			IsMaker:        false,
		}
		makerReport := report.Execution{
			ExecutionID:    fillID,
			OrderID:        maker.ID,
			ClientID:       maker.ClientID,
			CounterpartyID: o.ID,
			Symbol:         o.Symbol,
			Side:           makerSide.String(),
			Price:          fillPrice,
			Quantity:       filled,
			Remaining:      maker.Remaining,
			Timestamp:      ts,
			IsMaker:        true,
		}

		out = append(out, taker, makerReport)

		e.log.Debug().
			Str("fill_id", fillID).
			Str("taker_id", o.ID).
			Str("maker_id", maker.ID).
			Int64("price", fillPrice).
			Uint64("qty", filled).
			Msg("fill")
	}

	switch {
	case o.Remaining == 0:
		// Fully filled; nothing rests.
	case o.Kind == book.Limit:
		e.Book.Add(o)
	case o.Kind == book.Market:
		// Market residuals are abandoned, never rested (spec §4.3 step 3,
		// §9 open question on Market cancel semantics).
		e.log.Debug().Str("order_id", o.ID).Uint64("abandoned", o.Remaining).Msg("market residual abandoned")
	}

	return out
}

// Cancel resolves a cancel request (spec §4.3 step 1). If the target order
// is resting, it is removed and a single cancel-confirmation report is
// returned; otherwise Cancel is a silent no-op (no report, no state change).
func (e *Engine) Cancel(targetOrderID string) []report.Execution {
	o, ok := e.Book.Cancel(targetOrderID)
	if !ok {
		return nil
	}

	return []report.Execution{{
		ExecutionID:    uuid.NewString(),
		OrderID:        o.ID,
		ClientID:       o.ClientID,
		CounterpartyID: report.SystemCounterparty,
		Symbol:         o.Symbol,
		Side:           o.Side.String(),
		Price:          o.Price,
		Quantity:       0,
		Remaining:      0,
		Timestamp:      time.Now(),
		IsMaker:        false,
	}}
}

// priceChecksPass implements spec §4.3 step 2c: Market always matches;
// Limit Buy matches iff its price is at or above the best ask; Limit Sell
// matches iff its price is at or below the best bid.
func (e *Engine) priceChecksPass(o book.Order) bool {
	if o.Kind == book.Market {
		return true
	}

	oppositeSide := o.Side.Opposite()
	bestPriceVal, _, ok := bestPrice(e.Book, oppositeSide)
	if !ok {
		return false
	}

	if o.Side == book.Buy {
		return o.Price >= bestPriceVal
	}
	return o.Price <= bestPriceVal
}

func bestPrice(b *book.OrderBook, side book.Side) (int64, *book.PriceLevel, bool) {
	if side == book.Buy {
		return b.BestBid()
	}
	return b.BestAsk()
}
