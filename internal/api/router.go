// Package api implements the external HTTP/WS surface (spec §6): order
// submission and cancel over JSON HTTP, synchronous queries, and the
// WebSocket push stream.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"fenrir/internal/marketdata"
	"fenrir/internal/sequencer"
	"fenrir/internal/stream"
)

// SequencerLookup resolves a symbol to its Sequencer, so one router can
// serve every symbol's intake (spec §4.4: one sequencer per symbol).
type SequencerLookup func(symbol string) (*sequencer.Sequencer, bool)

// Server wires the REST query/command surface and the WebSocket stream
// together (spec §6).
type Server struct {
	sequencers SequencerLookup
	publisher  *marketdata.Publisher
	hub        *stream.Hub
	log        zerolog.Logger

	RequestTimeout time.Duration
	Backpressuring bool
}

// NewServer builds a Server. publisher answers the synchronous query
// endpoints; hub serves the WebSocket push stream.
func NewServer(sequencers SequencerLookup, publisher *marketdata.Publisher, hub *stream.Hub) *Server {
	return &Server{
		sequencers:     sequencers,
		publisher:      publisher,
		hub:            hub,
		log:            log.With().Str("component", "api").Logger(),
		RequestTimeout: 5 * time.Second,
	}
}

// Router builds the gorilla/mux router for the full external surface
// (spec §6).
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/orders", s.handleSubmitOrder).Methods(http.MethodPost)
	r.HandleFunc("/orders/{order_id}/cancel", s.handleCancelOrder).Methods(http.MethodPost)

	r.HandleFunc("/symbols/{symbol}/book", s.handleOrderBook).Methods(http.MethodGet)
	r.HandleFunc("/symbols/{symbol}/executions", s.handleExecutions).Methods(http.MethodGet)
	r.HandleFunc("/symbols/{symbol}/candles", s.handleCandles).Methods(http.MethodGet)
	r.HandleFunc("/symbols/{symbol}/statistics", s.handleStatistics).Methods(http.MethodGet)

	r.HandleFunc("/stream", s.handleStream).Methods(http.MethodGet)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	stream.Serve(s.hub, w, r, s.Backpressuring)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request handled")
	})
}
