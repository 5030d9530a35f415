package persistence

import "fenrir/internal/report"

// OrderStatus is the terminal-or-resting status recorded against an order
// once its filled quantity changes (spec §4.6, §6 "orders" table).
type OrderStatus string

const (
	StatusPartiallyFilled OrderStatus = "PartiallyFilled"
	StatusFilled          OrderStatus = "Filled"
)

// OrderUpdate is one row of the `orders` table sketch (spec §6): filled
// quantity and terminal status derived from an execution report.
type OrderUpdate struct {
	OrderID     string
	FilledDelta uint64
	Status      OrderStatus
}

// BalanceDelta is one row of the `balances` table sketch (spec §6): the
// change one client's holdings undergo as a result of a fill. Keyed by the
// report's own ClientID, never CounterpartyID — CounterpartyID names the
// other order in the fill, not an account.
// Asset bookkeeping (base vs quote, sign conventions) is left to the store
// implementation; the adapter only guarantees it is derived once per
// execution report and delivered inside the same atomic batch.
type BalanceDelta struct {
	ClientID string
	Asset    string
	Delta    int64 // positive credits, negative debits, in minor units
}

// Batch is one atomically-committed unit of work (spec §4.6): the adapter
// derives it entirely from a slice of execution reports.
type Batch struct {
	Executions []report.Execution
	Orders     []OrderUpdate
	Balances   []BalanceDelta
}

// Store is the durable backing store the adapter commits batches to. A
// real implementation wraps a SQL transaction or equivalent; CommitBatch
// must be idempotent by execution_id (spec §4.6, invariant 8) so that a
// batch retried after a partial failure never double-applies.
type Store interface {
	CommitBatch(Batch) error
}

// DeadLetterSink records batches that exhausted max_retries without being
// lost from the recovery log (spec §4.6).
type DeadLetterSink interface {
	DeadLetter(Batch, error)
}

// deriveBatch turns a slice of raw execution reports into the atomic unit
// CommitBatch expects (spec §4.6's three co-committed writes).
func deriveBatch(reports []report.Execution) Batch {
	b := Batch{Executions: reports}

	for _, r := range reports {
		status := StatusPartiallyFilled
		if r.Remaining == 0 {
			status = StatusFilled
		}
		if r.Quantity == 0 {
			// Cancel confirmation: no fill occurred, nothing to post.
			continue
		}
		b.Orders = append(b.Orders, OrderUpdate{
			OrderID:     r.OrderID,
			FilledDelta: r.Quantity,
			Status:      status,
		})

		notional := r.Price * int64(r.Quantity)
		if r.Side == "Buy" {
			b.Balances = append(b.Balances,
				BalanceDelta{ClientID: r.ClientID, Asset: "base", Delta: int64(r.Quantity)},
				BalanceDelta{ClientID: r.ClientID, Asset: "quote", Delta: -notional},
			)
		} else {
			b.Balances = append(b.Balances,
				BalanceDelta{ClientID: r.ClientID, Asset: "base", Delta: -int64(r.Quantity)},
				BalanceDelta{ClientID: r.ClientID, Asset: "quote", Delta: notional},
			)
		}
	}

	return b
}
