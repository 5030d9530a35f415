package stream

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"fenrir/internal/book"
	"fenrir/internal/marketdata"
	"fenrir/internal/report"
)

// Client is one connected subscriber's send-side view, registered with a
// Hub. Serve (conn.go) owns the actual *websocket.Conn and drains Send in
// its write pump, following the teacher's session-per-
// connection idiom (internal/net/server.go's ClientSession).
type Client struct {
	ID             string
	Symbols        map[string]bool // empty set = subscribed to every symbol
	Send           chan Frame
	Backpressuring bool // if false, a full buffer drops the client instead of blocking
}

func (c *Client) wants(symbol string) bool {
	if len(c.Symbols) == 0 {
		return true
	}
	return c.Symbols[symbol]
}

// Hub fans execution-stream-derived frames out to every subscribed client
// (spec §5 "exec_out... broadcast to N subscribers", §7 "a slow subscriber
// is disconnected if its buffer overflows"). It implements
// marketdata.Emitter.
type Hub struct {
	log zerolog.Logger

	register   chan *Client
	unregister chan *Client
	frames     chan Frame
}

// NewHub creates a Hub. Call Run in a goroutine (or via tomb) before
// registering clients.
func NewHub() *Hub {
	return &Hub{
		log:        log.With().Str("component", "stream-hub").Logger(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		frames:     make(chan Frame, 1024),
	}
}

// Run drives the hub's single-writer client-map loop until done is closed.
func (h *Hub) Run(done <-chan struct{}) {
	clients := make(map[*Client]bool)
	for {
		select {
		case <-done:
			for c := range clients {
				close(c.Send)
			}
			return

		case c := <-h.register:
			clients[c] = true
			h.log.Info().Str("client", c.ID).Int("count", len(clients)).Msg("client registered")

		case c := <-h.unregister:
			if clients[c] {
				delete(clients, c)
				close(c.Send)
				h.log.Info().Str("client", c.ID).Int("count", len(clients)).Msg("client unregistered")
			}

		case f := <-h.frames:
			for c := range clients {
				if !c.wants(f.Symbol) {
					continue
				}
				select {
				case c.Send <- f:
				default:
					if c.Backpressuring {
						// Lossless subscribers stall the hub loop briefly rather
						// than drop; bounded by the buffer already absorbing bursts.
						c.Send <- f
						continue
					}
					h.log.Warn().Str("client", c.ID).Msg("subscriber buffer overflow, disconnecting")
					delete(clients, c)
					close(c.Send)
				}
			}
		}
	}
}

// Register adds c to the broadcast set.
func (h *Hub) Register(c *Client) { h.register <- c }

// Unregister removes c from the broadcast set, if present.
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

func (h *Hub) publish(f Frame) {
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}
	select {
	case h.frames <- f:
	default:
		h.log.Warn().Str("type", string(f.Type)).Msg("hub frame queue full, dropping")
	}
}

// EmitExecution implements marketdata.Emitter.
func (h *Hub) EmitExecution(r report.Execution) {
	h.publish(Frame{Type: FrameExecution, Symbol: r.Symbol, Timestamp: r.Timestamp, Execution: &r})
}

// EmitCandle implements marketdata.Emitter.
func (h *Hub) EmitCandle(symbol, interval string, c marketdata.Candle) {
	h.publish(Frame{Type: FrameCandlestick, Symbol: symbol, Candle: candleToPayload(interval, c)})
}

// EmitStats implements marketdata.Emitter.
func (h *Hub) EmitStats(symbol string, v marketdata.View) {
	h.publish(Frame{Type: FrameMarketStatistics, Symbol: symbol, Stats: statsToPayload(v)})
}

// EmitBookSnapshot implements marketdata.Emitter.
func (h *Hub) EmitBookSnapshot(symbol string, snap book.Snapshot, sequence uint64) {
	h.publish(Frame{Type: FrameOrderBookUpdate, Symbol: symbol, Book: snapshotToPayload(snap)})
}

// EmitBookDelta implements marketdata.Emitter.
func (h *Hub) EmitBookDelta(symbol string, bidChanges, askChanges []marketdata.Delta, sequence uint64) {
	h.publish(Frame{
		Type:   FrameOrderBookDelta,
		Symbol: symbol,
		Delta: &bookDeltaPayload{
			BidChanges: deltasToPayload(bidChanges),
			AskChanges: deltasToPayload(askChanges),
			Sequence:   sequence,
		},
	})
}

// EmitError sends an Error frame to one client (spec §6 "Error{message}"),
// used by the transport layer to report per-connection problems it cannot
// recover from without tearing down the socket.
func (h *Hub) EmitError(c *Client, message string) {
	select {
	case c.Send <- Frame{Type: FrameError, Message: message, Timestamp: time.Now()}:
	default:
	}
}
