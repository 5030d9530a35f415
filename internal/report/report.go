// Package report defines the execution report the matching engine is the
// sole producer of (spec §3, §4.3). Every fill yields exactly two reports —
// one per counterparty — sharing the same ExecutionID.
package report

import "time"

// Execution is one counterparty's view of a single fill, or a cancel
// confirmation (Quantity=0, CounterpartyID="system", IsMaker=false).
type Execution struct {
	ExecutionID    string
	OrderID        string
	ClientID       string
	CounterpartyID string
	Symbol         string
	Side           string // "Buy" or "Sell", kept as string for wire/storage stability
	Price          int64
	Quantity       uint64
	Remaining      uint64
	Timestamp      time.Time
	IsMaker        bool
}

// SystemCounterparty is used for cancel confirmations (spec §4.3 step 1).
const SystemCounterparty = "system"
