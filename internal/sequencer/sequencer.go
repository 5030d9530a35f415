// Package sequencer implements the single-writer stage in front of a
// symbol's matching engine (spec §4.4): it totally orders admitted
// requests, stamps each with a strictly increasing ingress timestamp, and
// fans the resulting execution reports out to every downstream consumer in
// the same order.
package sequencer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"fenrir/internal/book"
	"fenrir/internal/clock"
	"fenrir/internal/engine"
	"fenrir/internal/errs"
	"fenrir/internal/report"
)

// NewOrderRequest is what an intake producer (an API handler) submits
// before admission; it carries no id or timestamp — the sequencer assigns
// both (spec §3 "Ownership").
type NewOrderRequest struct {
	Symbol   string
	Side     book.Side
	Kind     book.Kind
	Price    int64
	Quantity uint64
	ClientID string
}

// CancelRequest carries only the target order id (spec §3).
type CancelRequest struct {
	Symbol        string
	TargetOrderID string
}

// Sink receives the execution stream in sequencer order. The MDP
// (marketdata.Publisher) and the persistence batcher (persistence.Sink)
// implement Sink; the streaming fan-out is fed by the MDP's Emitter.
type Sink interface {
	Publish(symbol string, reports []report.Execution)
}

type intakeKind uint8

const (
	kindNewOrder intakeKind = iota
	kindCancel
)

type intakeItem struct {
	kind   intakeKind
	order  NewOrderRequest
	cancel CancelRequest
	result chan intakeResult
}

type intakeResult struct {
	orderID string
	err     error
}

// Sequencer is the single-writer intake stage for one symbol's engine.
type Sequencer struct {
	symbol string
	engine *engine.Engine
	clock  clock.Clock
	sinks  []Sink

	intake chan intakeItem
	log    zerolog.Logger

	mu     sync.Mutex
	lastTS time.Time
}

// New builds a Sequencer for eng's symbol, with the given intake channel
// capacity (spec §5 "intake: multi-producer, single-consumer... bounded").
func New(eng *engine.Engine, c clock.Clock, intakeCapacity int, sinks ...Sink) *Sequencer {
	return &Sequencer{
		symbol: eng.Symbol,
		engine: eng,
		clock:  c,
		sinks:  sinks,
		intake: make(chan intakeItem, intakeCapacity),
		log:    log.With().Str("component", "sequencer").Str("symbol", eng.Symbol).Logger(),
	}
}

// Run drives the sequencer loop until t is dying. Start it with
// t.Go(func() error { return seq.Run(t) }).
func (s *Sequencer) Run(t *tomb.Tomb) error {
	s.log.Info().Msg("sequencer running")
	for {
		select {
		case <-t.Dying():
			s.log.Info().Msg("sequencer stopping")
			return nil
		case item := <-s.intake:
			s.process(item)
		}
	}
}

func (s *Sequencer) process(item intakeItem) {
	switch item.kind {
	case kindNewOrder:
		o := book.Order{
			ID:        uuid.NewString(),
			Symbol:    item.order.Symbol,
			Side:      item.order.Side,
			Kind:      item.order.Kind,
			Price:     item.order.Price,
			Quantity:  item.order.Quantity,
			Remaining: item.order.Quantity,
			ClientID:  item.order.ClientID,
			Timestamp: s.nextTimestamp(),
		}
		reports := s.engine.Submit(o)
		s.fanOut(reports)
		item.result <- intakeResult{orderID: o.ID}

	case kindCancel:
		reports := s.engine.Cancel(item.cancel.TargetOrderID)
		s.fanOut(reports)
		if len(reports) == 0 {
			item.result <- intakeResult{err: errs.NotFound("ORDER_NOT_FOUND", errs.ErrOrderNotFound)}
			return
		}
		item.result <- intakeResult{orderID: item.cancel.TargetOrderID}
	}
}

// fanOut publishes to every sink in order. A slow sink blocks further
// intake (spec §4.4, §5): this call does not return until every sink has
// accepted the batch.
func (s *Sequencer) fanOut(reports []report.Execution) {
	if len(reports) == 0 {
		return
	}
	for _, sink := range s.sinks {
		sink.Publish(s.symbol, reports)
	}
}

// nextTimestamp returns a timestamp strictly greater than the last one
// assigned for this symbol, even if the clock does not itself advance
// (spec §4.4 "strictly increasing within a symbol").
func (s *Sequencer) nextTimestamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.clock.Now()
	if !ts.After(s.lastTS) {
		ts = s.lastTS.Add(time.Nanosecond)
	}
	s.lastTS = ts
	return ts
}

// SubmitOrder validates req (spec §6) and enqueues it onto the intake
// channel, blocking until the sequencer admits it or ctx is done. Returns
// the assigned order id.
func (s *Sequencer) SubmitOrder(ctx context.Context, req NewOrderRequest) (string, error) {
	if err := validateNewOrder(req); err != nil {
		return "", err
	}

	result := make(chan intakeResult, 1)
	item := intakeItem{kind: kindNewOrder, order: req, result: result}

	select {
	case s.intake <- item:
	case <-ctx.Done():
		return "", ctx.Err()
	default:
		// Intake full: try once more with a blocking send bounded by ctx,
		// surfacing SERVICE_UNAVAILABLE only if the context gives up first.
		select {
		case s.intake <- item:
		case <-ctx.Done():
			return "", errs.Capacity("SERVICE_UNAVAILABLE", fmt.Errorf("intake queue full for %s", s.symbol))
		}
	}

	select {
	case res := <-result:
		return res.orderID, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// CancelOrder enqueues a cancel request and blocks until it is sequenced.
func (s *Sequencer) CancelOrder(ctx context.Context, targetOrderID string) error {
	result := make(chan intakeResult, 1)
	item := intakeItem{
		kind:   kindCancel,
		cancel: CancelRequest{Symbol: s.symbol, TargetOrderID: targetOrderID},
		result: result,
	}

	select {
	case s.intake <- item:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case res := <-result:
		return res.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// validateNewOrder re-checks the invariants spec §6 requires at intake.
// The MISSING_PRICE vs INVALID_PRICE distinction (absent field vs explicit
// zero) depends on whether the JSON field was present at all, which only
// the transport decoder can see; it rejects those cases before a
// NewOrderRequest is ever built. Here we only guard against a zero or
// negative price reaching the engine regardless of transport.
func validateNewOrder(req NewOrderRequest) error {
	if req.Quantity == 0 {
		return errs.Client("INVALID_QUANTITY", fmt.Errorf("quantity must be > 0"))
	}
	if req.Kind == book.Limit && req.Price <= 0 {
		return errs.Client("INVALID_PRICE", fmt.Errorf("limit price must be > 0"))
	}
	return nil
}
