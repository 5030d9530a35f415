package marketdata

import (
	"sync"

	"fenrir/internal/book"
)

// DeltaOp is the kind of change between two consecutive book snapshots.
type DeltaOp uint8

const (
	DeltaAdd DeltaOp = iota
	DeltaUpdate
	DeltaRemove
)

func (op DeltaOp) String() string {
	switch op {
	case DeltaAdd:
		return "Add"
	case DeltaUpdate:
		return "Update"
	default:
		return "Remove"
	}
}

// Delta is one per-price change between two snapshots of one side
// (spec §4.5).
type Delta struct {
	Price  int64
	Volume uint64
	Op     DeltaOp
}

// Tracker computes Add/Update/Remove deltas between consecutive published
// snapshots of one symbol's book, and stamps each publish with a monotone
// sequence number (spec §4.5, §6 OrderBookDelta.sequence).
type Tracker struct {
	mu       sync.Mutex
	prevBids map[int64]uint64
	prevAsks map[int64]uint64
	sequence uint64
}

// NewTracker creates an empty tracker (no prior published snapshot).
func NewTracker() *Tracker {
	return &Tracker{prevBids: map[int64]uint64{}, prevAsks: map[int64]uint64{}}
}

// Diff compares snap against the previously published level set, returns
// the per-side deltas and the new sequence number, and then records snap as
// the new baseline.
func (t *Tracker) Diff(snap book.Snapshot) (bidChanges, askChanges []Delta, sequence uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	bidChanges = diffSide(t.prevBids, snap.Bids)
	askChanges = diffSide(t.prevAsks, snap.Asks)

	t.prevBids = levelMap(snap.Bids)
	t.prevAsks = levelMap(snap.Asks)
	t.sequence++

	return bidChanges, askChanges, t.sequence
}

func levelMap(levels []book.PriceVolume) map[int64]uint64 {
	m := make(map[int64]uint64, len(levels))
	for _, l := range levels {
		m[l.Price] = l.Volume
	}
	return m
}

func diffSide(prev map[int64]uint64, cur []book.PriceVolume) []Delta {
	var changes []Delta
	seen := make(map[int64]bool, len(cur))

	for _, l := range cur {
		seen[l.Price] = true
		prevVol, existed := prev[l.Price]
		switch {
		case !existed:
			changes = append(changes, Delta{Price: l.Price, Volume: l.Volume, Op: DeltaAdd})
		case prevVol != l.Volume:
			changes = append(changes, Delta{Price: l.Price, Volume: l.Volume, Op: DeltaUpdate})
		}
	}

	for price := range prev {
		if !seen[price] {
			changes = append(changes, Delta{Price: price, Op: DeltaRemove})
		}
	}

	return changes
}
