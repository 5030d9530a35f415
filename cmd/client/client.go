package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type submitOrderRequest struct {
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	OrderType string `json:"order_type"`
	Price     *int64 `json:"price,omitempty"`
	Quantity  uint64 `json:"quantity"`
	ClientID  string `json:"client_id"`
}

func main() {
	serverAddr := flag.String("server", "127.0.0.1:8080", "Address of the exchange's API server")
	owner := flag.String("owner", "", "Owner username (compulsory)")
	action := flag.String("action", "place", "Action to perform: ['place', 'cancel', 'stream']")

	ticker := flag.String("ticker", "AAPL", "Ticker symbol")
	sideStr := flag.String("side", "buy", "Order side: 'buy' or 'sell'")
	typeStr := flag.String("type", "limit", "Order type: 'limit' or 'market'")
	price := flag.Int64("price", 100, "Limit price, in integer minor units")
	qtyStr := flag.String("qty", "10", "Quantity or comma-separated list (e.g. 10,20,50)")

	orderID := flag.String("uuid", "", "order_id of the order to cancel")

	flag.Parse()

	if *owner == "" {
		fmt.Println("Error: -owner is compulsory.")
		flag.Usage()
		os.Exit(1)
	}

	switch strings.ToLower(*action) {
	case "place":
		side := "Buy"
		if strings.ToLower(*sideStr) == "sell" {
			side = "Sell"
		}
		orderType := "Limit"
		if strings.ToLower(*typeStr) == "market" {
			orderType = "Market"
		}

		for _, q := range parseQuantities(*qtyStr) {
			if err := placeOrder(*serverAddr, *ticker, side, orderType, *price, q, *owner); err != nil {
				log.Printf("failed to place order (qty %d): %v", q, err)
			} else {
				fmt.Printf("-> sent %s %s %s qty=%d price=%d\n", strings.ToUpper(*sideStr), orderType, *ticker, q, *price)
			}
			time.Sleep(5 * time.Millisecond)
		}
		return

	case "cancel":
		if *orderID == "" {
			log.Fatal("Error: -uuid is required for cancellation")
		}
		if err := cancelOrder(*serverAddr, *ticker, *orderID); err != nil {
			log.Printf("failed to cancel order: %v", err)
		} else {
			fmt.Printf("-> sent cancel for order_id %s\n", *orderID)
		}
		return

	case "stream":
		fmt.Println("\nlistening for reports... (Ctrl+C to exit)")
		streamReports(*serverAddr, *ticker)

	default:
		log.Fatalf("unknown action: %s", *action)
	}
}

// parseQuantities splits a comma-separated string into a slice of uint64.
func parseQuantities(input string) []uint64 {
	var result []uint64
	for _, p := range strings.Split(input, ",") {
		p = strings.TrimSpace(p)
		if val, err := strconv.ParseUint(p, 10, 64); err == nil {
			result = append(result, val)
		} else {
			log.Printf("warning: invalid quantity %q, skipping", p)
		}
	}
	return result
}

// placeOrder submits a new order via the JSON HTTP intake endpoint (spec §6).
func placeOrder(serverAddr, symbol, side, orderType string, price int64, qty uint64, clientID string) error {
	req := submitOrderRequest{
		Symbol: symbol, Side: side, OrderType: orderType, Quantity: qty, ClientID: clientID,
	}
	if orderType == "Limit" {
		req.Price = &price
	}

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	resp, err := http.Post(fmt.Sprintf("http://%s/orders", serverAddr), "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	return nil
}

func cancelOrder(serverAddr, symbol, orderID string) error {
	u := fmt.Sprintf("http://%s/orders/%s/cancel?symbol=%s", serverAddr, url.PathEscape(orderID), url.QueryEscape(symbol))
	resp, err := http.Post(u, "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var apiErr struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&apiErr)
	return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
}

// streamReports connects to the push stream and prints every frame for
// symbol until the connection closes (spec §6).
func streamReports(serverAddr, symbol string) {
	u := url.URL{Scheme: "ws", Host: serverAddr, Path: "/stream", RawQuery: "symbols=" + url.QueryEscape(symbol)}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect to stream: %v", err)
	}
	defer conn.Close()

	for {
		var frame map[string]any
		if err := conn.ReadJSON(&frame); err != nil {
			log.Printf("stream closed: %v", err)
			return
		}

		switch frame["type"] {
		case "Execution":
			fmt.Printf("\n[EXECUTION] %v\n", frame["execution"])
		case "Error":
			fmt.Printf("\n[SERVER ERROR] %v\n", frame["message"])
		default:
			fmt.Printf("\n[%v] %v\n", frame["type"], frame)
		}
	}
}
