package marketdata

import (
	"sync"
	"time"
)

// Candle is one closed or live OHLCV bucket (spec §3).
type Candle struct {
	OpenTime   time.Time
	CloseTime  time.Time
	Open       int64
	High       int64
	Low        int64
	Close      int64
	Volume     uint64
	TradeCount uint64
}

// Interval names the seven supported timeframes and their durations
// (spec §4.5).
type Interval struct {
	Name     string
	Duration time.Duration
}

// Intervals is the fixed set of candle timeframes, in ascending duration.
var Intervals = []Interval{
	{"1m", time.Minute},
	{"5m", 5 * time.Minute},
	{"15m", 15 * time.Minute},
	{"30m", 30 * time.Minute},
	{"1h", time.Hour},
	{"4h", 4 * time.Hour},
	{"1d", 24 * time.Hour},
}

const defaultRetention = 1440

type intervalState struct {
	duration  time.Duration
	retention int
	live      *Candle
	history   []Candle // oldest first, bounded to retention
}

func newIntervalState(d Interval, retention int) *intervalState {
	if retention <= 0 {
		retention = defaultRetention
	}
	return &intervalState{duration: d.Duration, retention: retention}
}

// bucketStart floors ts to the interval boundary (spec §4.5).
func (s *intervalState) bucketStart(ts time.Time) time.Time {
	d := s.duration
	return time.Unix(0, (ts.UnixNano()/int64(d))*int64(d)).UTC()
}

func (s *intervalState) update(price int64, qty uint64, ts time.Time) {
	start := s.bucketStart(ts)

	if s.live != nil && s.live.OpenTime.Equal(start) {
		if price > s.live.High {
			s.live.High = price
		}
		if price < s.live.Low {
			s.live.Low = price
		}
		s.live.Close = price
		s.live.Volume += qty
		s.live.TradeCount++
		return
	}

	if s.live != nil {
		s.history = append(s.history, *s.live)
		if len(s.history) > s.retention {
			s.history = s.history[len(s.history)-s.retention:]
		}
	}

	s.live = &Candle{
		OpenTime:   start,
		CloseTime:  start.Add(s.duration),
		Open:       price,
		High:       price,
		Low:        price,
		Close:      price,
		Volume:     qty,
		TradeCount: 1,
	}
}

// candles returns up to limit candles, most recent first, including the
// live bucket.
func (s *intervalState) candles(limit int) []Candle {
	var all []Candle
	if s.live != nil {
		all = append(all, *s.live)
	}
	for i := len(s.history) - 1; i >= 0; i-- {
		all = append(all, s.history[i])
	}
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}

// symbolCandles holds the candle table for one symbol across all intervals.
type symbolCandles struct {
	mu    sync.RWMutex
	table map[string]*intervalState
}

func newSymbolCandles(retention map[string]int) *symbolCandles {
	sc := &symbolCandles{table: make(map[string]*intervalState, len(Intervals))}
	for _, iv := range Intervals {
		sc.table[iv.Name] = newIntervalState(iv, retention[iv.Name])
	}
	return sc
}

func (sc *symbolCandles) update(price int64, qty uint64, ts time.Time) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	for _, st := range sc.table {
		st.update(price, qty, ts)
	}
}

func (sc *symbolCandles) candles(interval string, limit int) []Candle {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	st, ok := sc.table[interval]
	if !ok {
		return nil
	}
	return st.candles(limit)
}

// live returns the current live candle for interval, if any, for frame
// emission on each update.
func (sc *symbolCandles) live(interval string) (Candle, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	st, ok := sc.table[interval]
	if !ok || st.live == nil {
		return Candle{}, false
	}
	return *st.live, true
}
