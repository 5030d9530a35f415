package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"fenrir/internal/book"
	"fenrir/internal/errs"
	"fenrir/internal/sequencer"
)

// submitOrderRequest mirrors spec §6's intake fields. Price is a pointer
// so the decoder can distinguish an absent field (MISSING_PRICE) from an
// explicit zero (INVALID_PRICE) — a distinction a plain int64 cannot
// represent, which is why this check lives here rather than in
// internal/sequencer.
type submitOrderRequest struct {
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	OrderType string `json:"order_type"`
	Price     *int64 `json:"price,omitempty"`
	Quantity  uint64 `json:"quantity"`
	ClientID  string `json:"client_id"`
}

type submitOrderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type cancelResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	seq, ok := s.sequencers(req.Symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "UNKNOWN_SYMBOL", "symbol not supported")
		return
	}

	side, err := parseSide(req.Side)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_SIDE", err.Error())
		return
	}
	kind, err := parseKind(req.OrderType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ORDER_TYPE", err.Error())
		return
	}

	if req.Quantity == 0 {
		writeError(w, http.StatusBadRequest, "INVALID_QUANTITY", "quantity must be > 0")
		return
	}

	var price int64
	if kind == book.Limit {
		switch {
		case req.Price == nil:
			writeError(w, http.StatusBadRequest, "MISSING_PRICE", "limit orders require a price")
			return
		case *req.Price <= 0:
			writeError(w, http.StatusBadRequest, "INVALID_PRICE", "limit price must be > 0")
			return
		default:
			price = *req.Price
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout)
	defer cancel()

	orderID, err := seq.SubmitOrder(ctx, sequencer.NewOrderRequest{
		Symbol: req.Symbol, Side: side, Kind: kind, Price: price,
		Quantity: req.Quantity, ClientID: req.ClientID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, submitOrderResponse{OrderID: orderID, Status: "ACCEPTED"})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["order_id"]
	symbol := r.URL.Query().Get("symbol")

	seq, ok := s.sequencers(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "UNKNOWN_SYMBOL", "symbol not supported")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout)
	defer cancel()

	if err := seq.CancelOrder(ctx, orderID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelResponse{OrderID: orderID, Status: "CANCELLED"})
}

func (s *Server) handleOrderBook(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	depth := queryInt(r, "depth", 20)

	snap, ok := s.publisher.OrderBookSnapshot(symbol, depth)
	if !ok {
		writeError(w, http.StatusNotFound, "UNKNOWN_SYMBOL", "symbol not supported")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleExecutions(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	limit := queryInt(r, "limit", 100)

	execs, ok := s.publisher.LatestExecutions(symbol, limit)
	if !ok {
		writeError(w, http.StatusNotFound, "UNKNOWN_SYMBOL", "symbol not supported")
		return
	}
	writeJSON(w, http.StatusOK, execs)
}

func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = "1m"
	}
	limit := queryInt(r, "limit", 100)

	candles, ok := s.publisher.Candles(symbol, interval, limit)
	if !ok {
		writeError(w, http.StatusNotFound, "UNKNOWN_SYMBOL", "symbol not supported")
		return
	}
	writeJSON(w, http.StatusOK, candles)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	view, ok := s.publisher.Statistics(symbol, timeNow())
	if !ok {
		writeError(w, http.StatusNotFound, "UNKNOWN_SYMBOL", "symbol not supported")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func parseSide(s string) (book.Side, error) {
	switch s {
	case "Buy":
		return book.Buy, nil
	case "Sell":
		return book.Sell, nil
	default:
		return 0, errInvalidField("side", s)
	}
}

func parseKind(s string) (book.Kind, error) {
	switch s {
	case "Limit":
		return book.Limit, nil
	case "Market":
		return book.Market, nil
	default:
		return 0, errInvalidField("order_type", s)
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Code: code, Message: message})
}

// writeDomainError maps the internal/errs taxonomy (spec §7) onto HTTP
// status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	var fe *errs.Error
	if e, ok := err.(*errs.Error); ok {
		fe = e
	}
	if fe == nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch fe.Kind {
	case errs.KindClient:
		status = http.StatusBadRequest
	case errs.KindNotFound:
		status = http.StatusNotFound
	case errs.KindCapacity:
		status = http.StatusServiceUnavailable
	case errs.KindInvariant:
		status = http.StatusInternalServerError
	}
	writeError(w, status, fe.Code, fe.Error())
}
