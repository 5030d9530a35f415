// Package stream implements the push-stream fan-out (spec §5 "streaming
// subscriber fan-out", §6 "push stream frames"): a WebSocket hub that
// tags every frame with its kind and broadcasts it to subscribers of the
// relevant symbol.
package stream

import (
	"time"

	"fenrir/internal/book"
	"fenrir/internal/marketdata"
	"fenrir/internal/report"
)

// FrameType is the tag of a push-stream frame's union (spec §6).
type FrameType string

const (
	FrameExecution        FrameType = "Execution"
	FrameOrderBookUpdate  FrameType = "OrderBookUpdate"
	FrameOrderBookDelta   FrameType = "OrderBookDelta"
	FrameMarketStatistics FrameType = "MarketStatistics"
	FrameCandlestick      FrameType = "CandlestickUpdate"
	FrameError            FrameType = "Error"
)

// Frame is the wire envelope for every push-stream message (spec §6).
// Exactly one of the payload fields is populated, selected by Type.
type Frame struct {
	Type      FrameType          `json:"type"`
	Symbol    string             `json:"symbol,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Execution *report.Execution  `json:"execution,omitempty"`
	Book      *bookUpdatePayload `json:"book,omitempty"`
	Delta     *bookDeltaPayload  `json:"delta,omitempty"`
	Stats     *statsPayload      `json:"stats,omitempty"`
	Candle    *candlePayload     `json:"candle,omitempty"`
	Message   string             `json:"message,omitempty"`
}

type bookUpdatePayload struct {
	Bids [][2]int64 `json:"bids"`
	Asks [][2]int64 `json:"asks"`
}

type bookDeltaPayload struct {
	BidChanges []deltaPayload `json:"bid_changes"`
	AskChanges []deltaPayload `json:"ask_changes"`
	Sequence   uint64         `json:"sequence"`
}

type deltaPayload struct {
	Price  int64  `json:"price"`
	Volume uint64 `json:"volume"`
	Op     string `json:"op"`
}

type statsPayload struct {
	LastPrice      *int64  `json:"last_price,omitempty"`
	OpenPrice24h   *int64  `json:"open_price_24h,omitempty"`
	HighPrice24h   *int64  `json:"high_price_24h,omitempty"`
	LowPrice24h    *int64  `json:"low_price_24h,omitempty"`
	Volume24h      uint64  `json:"volume_24h"`
	PriceChange24h *string `json:"price_change_24h,omitempty"`
}

type candlePayload struct {
	Interval   string    `json:"interval"`
	OpenTime   time.Time `json:"open_time"`
	CloseTime  time.Time `json:"close_time"`
	Open       int64     `json:"open"`
	High       int64     `json:"high"`
	Low        int64     `json:"low"`
	Close      int64     `json:"close"`
	Volume     uint64    `json:"volume"`
	TradeCount uint64    `json:"trade_count"`
}

func snapshotToPayload(snap book.Snapshot) *bookUpdatePayload {
	p := &bookUpdatePayload{}
	for _, l := range snap.Bids {
		p.Bids = append(p.Bids, [2]int64{l.Price, int64(l.Volume)})
	}
	for _, l := range snap.Asks {
		p.Asks = append(p.Asks, [2]int64{l.Price, int64(l.Volume)})
	}
	return p
}

func deltasToPayload(changes []marketdata.Delta) []deltaPayload {
	out := make([]deltaPayload, 0, len(changes))
	for _, d := range changes {
		out = append(out, deltaPayload{Price: d.Price, Volume: d.Volume, Op: d.Op.String()})
	}
	return out
}

func statsToPayload(v marketdata.View) *statsPayload {
	p := &statsPayload{Volume24h: v.Volume}
	if v.HasTrade {
		last, open, high, low := v.Last, v.Open, v.High, v.Low
		p.LastPrice, p.OpenPrice24h, p.HighPrice24h, p.LowPrice24h = &last, &open, &high, &low
		pct := v.ChangePct.StringFixed(4)
		p.PriceChange24h = &pct
	}
	return p
}

func candleToPayload(interval string, c marketdata.Candle) *candlePayload {
	return &candlePayload{
		Interval:   interval,
		OpenTime:   c.OpenTime,
		CloseTime:  c.CloseTime,
		Open:       c.Open,
		High:       c.High,
		Low:        c.Low,
		Close:      c.Close,
		Volume:     c.Volume,
		TradeCount: c.TradeCount,
	}
}
