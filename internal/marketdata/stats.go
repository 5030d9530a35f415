package marketdata

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type statEvent struct {
	ts    time.Time
	price int64
	qty   uint64
}

// Stats maintains a rolling 24h aggregate over executions for one symbol
// (spec §4.5), recomputed from a window-eviction queue on each read —
// conforming per spec's "either is conforming" note, and simpler to reason
// about than incremental high/low maintenance under eviction.
type Stats struct {
	mu     sync.Mutex
	window time.Duration
	events []statEvent
}

// NewStats creates a Stats tracker with the given rolling window (24h by
// default per spec §3).
func NewStats(window time.Duration) *Stats {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Stats{window: window}
}

// Record appends an execution to the window and evicts anything now older
// than window relative to ts.
func (s *Stats) Record(price int64, qty uint64, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, statEvent{ts: ts, price: price, qty: qty})
	s.evictLocked(ts)
}

func (s *Stats) evictLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	i := 0
	for i < len(s.events) && s.events[i].ts.Before(cutoff) {
		i++
	}
	if i > 0 {
		s.events = append([]statEvent{}, s.events[i:]...)
	}
}

// View is a point-in-time rendering of the rolling statistics.
type View struct {
	HasTrade  bool
	Open      int64
	High      int64
	Low       int64
	Last      int64
	Volume    uint64
	ChangePct decimal.Decimal
}

// Snapshot computes the statistics view as of now, scanning only events
// still within the trailing window.
func (s *Stats) Snapshot(now time.Time) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked(now)

	var v View
	for _, e := range s.events {
		if !v.HasTrade {
			v.Open, v.High, v.Low, v.HasTrade = e.price, e.price, e.price, true
		} else {
			if e.price > v.High {
				v.High = e.price
			}
			if e.price < v.Low {
				v.Low = e.price
			}
		}
		v.Last = e.price
		v.Volume += e.qty
	}

	if v.HasTrade && v.Open != 0 {
		last := decimal.NewFromInt(v.Last)
		open := decimal.NewFromInt(v.Open)
		v.ChangePct = last.Sub(open).Div(open).Mul(decimal.NewFromInt(100))
	}
	return v
}
