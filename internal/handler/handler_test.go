package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/events"
	"github.com/efreitasn/papertrade/internal/service"
	"github.com/efreitasn/papertrade/internal/store"
)

// midRand always yields 0.5, which leaves every price unchanged.
type midRand struct{}

func (midRand) Float64() float64 { return 0.5 }

// testEnv bundles all dependencies for handler integration tests.
type testEnv struct {
	router  http.Handler
	matcher *engine.Matcher
	events  *events.Broadcaster
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := discardLogger()

	is := store.NewInstrumentRegistry(domain.DefaultInstruments())
	os := store.NewOrderStore()
	ts := store.NewTradeLedger()
	b := events.NewBroadcaster()
	m := engine.NewMatcher(is, os, ts, b, logger)
	sim := engine.NewSimulator(m, time.Hour, 0.005, midRand{}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		sim.Stop()
		cancel()
	})

	router := NewRouter(Services{
		Instruments: service.NewInstrumentService(is, m),
		Orders:      service.NewOrderService(m, is, os, ts, true, logger),
		Trades:      service.NewTradeService(ts, os),
		Portfolio:   service.NewPortfolioService(ts, is),
		Simulation:  service.NewSimulationService(ctx, sim, m),
		Events:      b,
		Stats:       func() store.Stats { return store.CollectStats(is, os, ts) },
	}, "user_001", logger)

	return &testEnv{router: router, matcher: m, events: b}
}

// doJSON sends a JSON request and returns the recorder.
func (env *testEnv) doJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

// doRaw sends a raw request with optional content-type and user override.
func (env *testEnv) doRaw(t *testing.T, method, path, contentType, rawBody, userID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(rawBody))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if userID != "" {
		req.Header.Set(userHeader, userID)
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

// setPrice moves one instrument through a tick so matching runs.
func (env *testEnv) setPrice(symbol, price string) {
	target := domain.MustPrice(price)
	env.matcher.Tick(func(in domain.Instrument) decimal.Decimal {
		if in.Symbol == symbol {
			return target
		}
		return in.LastTradedPrice
	})
}

type successBody struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// decodeSuccess checks the status and decodes the envelope's data into v.
func decodeSuccess(t *testing.T, rr *httptest.ResponseRecorder, status int, v any) successBody {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, rr.Code, rr.Body.String())
	}
	var body successBody
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rr.Body.String())
	}
	if !body.Success {
		t.Fatalf("success = false: %s", rr.Body.String())
	}
	if v != nil {
		if err := json.Unmarshal(body.Data, v); err != nil {
			t.Fatalf("decode data: %v (data: %s)", err, body.Data)
		}
	}
	return body
}

// decodeFailure checks the status and decodes the error body.
func decodeFailure(t *testing.T, rr *httptest.ResponseRecorder, status int) errorBody {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, rr.Code, rr.Body.String())
	}
	var resp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rr.Body.String())
	}
	if resp.Success {
		t.Fatal("success = true on an error response")
	}
	return resp.Error
}

func (env *testEnv) placeOrder(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	var data map[string]any
	decodeSuccess(t, env.doJSON(t, "POST", "/api/v1/orders", body), http.StatusCreated, &data)
	return data
}

func field(t *testing.T, m map[string]any, path ...string) any {
	t.Helper()
	var cur any = m
	for _, p := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			t.Fatalf("%v: not an object at %q", path, p)
		}
		cur = obj[p]
	}
	return cur
}

// --- Healthz ---

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rr := env.doJSON(t, "GET", "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]any
	json.NewDecoder(rr.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("status = %v", body["status"])
	}
	if body["instruments"] != float64(15) || body["orders"] != float64(0) {
		t.Errorf("unexpected stats %v", body)
	}
}

// --- Instruments ---

func TestInstruments_List(t *testing.T) {
	env := newTestEnv(t)
	var data []map[string]any
	body := decodeSuccess(t, env.doJSON(t, "GET", "/api/v1/instruments", nil), http.StatusOK, &data)

	if body.Message != "Instruments fetched successfully" {
		t.Errorf("message = %q", body.Message)
	}
	if len(data) != 15 {
		t.Fatalf("expected 15 instruments, got %d", len(data))
	}
	if data[0]["symbol"] != "RELIANCE" || data[0]["lastTradedPrice"] != 2450.75 || data[0]["exchange"] != "NSE" {
		t.Errorf("unexpected first instrument %v", data[0])
	}
}

func TestInstruments_Get(t *testing.T) {
	env := newTestEnv(t)
	var data map[string]any
	decodeSuccess(t, env.doJSON(t, "GET", "/api/v1/instruments/TCS", nil), http.StatusOK, &data)
	if data["lastTradedPrice"] != 3680.5 || data["instrumentType"] != "EQUITY" {
		t.Errorf("unexpected instrument %v", data)
	}

	e := decodeFailure(t, env.doJSON(t, "GET", "/api/v1/instruments/NOPE", nil), http.StatusNotFound)
	if e.Kind != "NotFound" || e.Message != "Instrument not found" {
		t.Errorf("unexpected error %+v", e)
	}
}

func TestInstruments_Book(t *testing.T) {
	env := newTestEnv(t)
	for _, p := range []string{"3600", "3600", "3500"} {
		env.placeOrder(t, map[string]any{"symbol": "TCS", "orderType": "BUY", "orderStyle": "LIMIT", "quantity": 2, "price": p})
	}
	env.placeOrder(t, map[string]any{"symbol": "TCS", "orderType": "SELL", "orderStyle": "LIMIT", "quantity": 1, "price": 3900})

	var data struct {
		Symbol    string           `json:"symbol"`
		Bids      []map[string]any `json:"bids"`
		Asks      []map[string]any `json:"asks"`
		BidOrders int              `json:"bidOrders"`
		AskOrders int              `json:"askOrders"`
	}
	decodeSuccess(t, env.doJSON(t, "GET", "/api/v1/instruments/TCS/book?levels=1", nil), http.StatusOK, &data)
	if len(data.Bids) != 1 || data.Bids[0]["price"] != float64(3600) || data.Bids[0]["totalQuantity"] != float64(4) || data.Bids[0]["orderCount"] != float64(2) {
		t.Errorf("unexpected bids %v", data.Bids)
	}
	if len(data.Asks) != 1 || data.Asks[0]["price"] != float64(3900) {
		t.Errorf("unexpected asks %v", data.Asks)
	}
	if data.BidOrders != 3 || data.AskOrders != 1 {
		t.Errorf("resting counts = %d bids, %d asks; want 3 and 1", data.BidOrders, data.AskOrders)
	}

	decodeFailure(t, env.doJSON(t, "GET", "/api/v1/instruments/TCS/book?levels=0", nil), http.StatusBadRequest)
	decodeFailure(t, env.doJSON(t, "GET", "/api/v1/instruments/NOPE/book", nil), http.StatusNotFound)
}

// --- Orders ---

func TestPlaceOrder_Market(t *testing.T) {
	env := newTestEnv(t)
	rr := env.doJSON(t, "POST", "/api/v1/orders", map[string]any{
		"symbol": "RELIANCE", "orderType": "BUY", "orderStyle": "MARKET", "quantity": 10,
	})
	var data map[string]any
	body := decodeSuccess(t, rr, http.StatusCreated, &data)

	if body.Message != "Order executed successfully" {
		t.Errorf("message = %q", body.Message)
	}
	if field(t, data, "order", "status") != "EXECUTED" || field(t, data, "order", "userId") != "user_001" {
		t.Errorf("unexpected order %v", data["order"])
	}
	if field(t, data, "order", "price") != nil {
		t.Errorf("market order price = %v, want null", field(t, data, "order", "price"))
	}
	if field(t, data, "trade", "executedPrice") != 2450.75 || field(t, data, "trade", "totalValue") != 24507.5 {
		t.Errorf("unexpected trade %v", data["trade"])
	}
}

func TestPlaceOrder_LimitRestsThenExecutes(t *testing.T) {
	env := newTestEnv(t)
	rr := env.doJSON(t, "POST", "/api/v1/orders", map[string]any{
		"symbol": "tcs", "orderType": "BUY", "orderStyle": "LIMIT", "quantity": 5, "price": 3600,
	})
	var data map[string]any
	body := decodeSuccess(t, rr, http.StatusCreated, &data)
	if body.Message != "Order placed successfully" {
		t.Errorf("message = %q", body.Message)
	}
	if field(t, data, "order", "status") != "PLACED" || data["trade"] != nil {
		t.Fatalf("unexpected data %v", data)
	}
	orderID := field(t, data, "order", "orderId").(string)

	env.setPrice("TCS", "3599.95")

	var order map[string]any
	decodeSuccess(t, env.doJSON(t, "GET", "/api/v1/orders/"+orderID, nil), http.StatusOK, &order)
	if order["status"] != "EXECUTED" {
		t.Fatalf("status = %v, want EXECUTED", order["status"])
	}

	var trades []map[string]any
	decodeSuccess(t, env.doJSON(t, "GET", "/api/v1/trades/order/"+orderID, nil), http.StatusOK, &trades)
	if len(trades) != 1 || trades[0]["executedPrice"] != 3599.95 {
		t.Fatalf("unexpected trades %v", trades)
	}
}

func TestPlaceOrder_CollectsAllViolations(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "missing price",
			body: `{"symbol":"TCS","orderType":"HOLD","orderStyle":"LIMIT","quantity":"ten"}`,
			want: []string{
				"Order type must be BUY or SELL",
				"Quantity must be greater than 0",
				"Price is mandatory for LIMIT orders",
			},
		},
		{
			name: "non-numeric price",
			body: `{"symbol":"TCS","orderType":"HOLD","orderStyle":"LIMIT","quantity":0,"price":"abc"}`,
			want: []string{
				"Order type must be BUY or SELL",
				"Quantity must be greater than 0",
				"Price must be a number",
			},
		},
		{
			name: "non-numeric price on market order",
			body: `{"symbol":"TCS","orderType":"BUY","orderStyle":"MARKET","quantity":-1,"price":{}}`,
			want: []string{
				"Quantity must be greater than 0",
				"Price must not be set for MARKET orders",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rr := env.doRaw(t, "POST", "/api/v1/orders", "application/json", tt.body, "")

			e := decodeFailure(t, rr, http.StatusBadRequest)
			if e.Kind != "ValidationError" || e.Message != "Validation failed" {
				t.Errorf("unexpected error %+v", e)
			}
			if len(e.Errors) != len(tt.want) {
				t.Fatalf("errors = %v, want %v", e.Errors, tt.want)
			}
			for i := range tt.want {
				if e.Errors[i] != tt.want[i] {
					t.Errorf("errors[%d] = %q, want %q", i, e.Errors[i], tt.want[i])
				}
			}
		})
	}
}

func TestPlaceOrder_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantKind   string
	}{
		{"unknown symbol", `{"symbol":"NOPE","orderType":"BUY","orderStyle":"MARKET","quantity":1}`, http.StatusNotFound, "NotFound"},
		{"unknown symbol beats validation", `{"symbol":"NOPE","orderType":"X","orderStyle":"Y","quantity":0}`, http.StatusNotFound, "NotFound"},
		{"fractional price", `{"symbol":"TCS","orderType":"BUY","orderStyle":"LIMIT","quantity":1,"price":10.125}`, http.StatusBadRequest, "ValidationError"},
		{"non-numeric price", `{"symbol":"TCS","orderType":"BUY","orderStyle":"LIMIT","quantity":1,"price":"abc"}`, http.StatusBadRequest, "ValidationError"},
		{"market with price", `{"symbol":"TCS","orderType":"BUY","orderStyle":"MARKET","quantity":1,"price":10}`, http.StatusBadRequest, "ValidationError"},
		{"fractional quantity", `{"symbol":"TCS","orderType":"BUY","orderStyle":"MARKET","quantity":1.5}`, http.StatusBadRequest, "ValidationError"},
		{"malformed JSON", `{"symbol":`, http.StatusBadRequest, "ValidationError"},
		{"unknown field", `{"symbol":"TCS","foo":1}`, http.StatusBadRequest, "ValidationError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.doRaw(t, "POST", "/api/v1/orders", "application/json", tt.body, "")
			e := decodeFailure(t, rr, tt.wantStatus)
			if e.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", e.Kind, tt.wantKind)
			}
		})
	}
}

func TestPlaceOrder_WrongContentType(t *testing.T) {
	env := newTestEnv(t)
	rr := env.doRaw(t, "POST", "/api/v1/orders", "text/plain", `{"symbol":"TCS"}`, "")
	e := decodeFailure(t, rr, http.StatusBadRequest)
	if !strings.Contains(e.Message, "Content-Type") {
		t.Errorf("message = %q", e.Message)
	}
}

func TestListOrders(t *testing.T) {
	env := newTestEnv(t)
	env.placeOrder(t, map[string]any{"symbol": "ITC", "orderType": "BUY", "orderStyle": "MARKET", "quantity": 1})
	env.placeOrder(t, map[string]any{"symbol": "ITC", "orderType": "BUY", "orderStyle": "LIMIT", "quantity": 1, "price": 1})
	env.doRaw(t, "POST", "/api/v1/orders", "application/json",
		`{"symbol":"ITC","orderType":"BUY","orderStyle":"MARKET","quantity":1}`, "user_002")

	var all []map[string]any
	decodeSuccess(t, env.doJSON(t, "GET", "/api/v1/orders", nil), http.StatusOK, &all)
	if len(all) != 2 {
		t.Fatalf("expected 2 orders for user_001, got %d", len(all))
	}

	var placed []map[string]any
	decodeSuccess(t, env.doJSON(t, "GET", "/api/v1/orders?status=placed", nil), http.StatusOK, &placed)
	if len(placed) != 1 || placed[0]["orderStyle"] != "LIMIT" {
		t.Fatalf("unexpected PLACED orders %v", placed)
	}

	e := decodeFailure(t, env.doJSON(t, "GET", "/api/v1/orders?status=DONE", nil), http.StatusBadRequest)
	if e.Kind != "ValidationError" {
		t.Errorf("kind = %q", e.Kind)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	env := newTestEnv(t)
	e := decodeFailure(t, env.doJSON(t, "GET", "/api/v1/orders/missing", nil), http.StatusNotFound)
	if e.Message != "Order not found" {
		t.Errorf("message = %q", e.Message)
	}
}

func TestCancelOrder(t *testing.T) {
	env := newTestEnv(t)
	data := env.placeOrder(t, map[string]any{"symbol": "SBIN", "orderType": "SELL", "orderStyle": "LIMIT", "quantity": 3, "price": 700})
	orderID := field(t, data, "order", "orderId").(string)

	// Another user cannot cancel it.
	e := decodeFailure(t, env.doRaw(t, "DELETE", "/api/v1/orders/"+orderID, "", "", "user_002"), http.StatusForbidden)
	if e.Kind != "Unauthorized" {
		t.Errorf("kind = %q", e.Kind)
	}

	var order map[string]any
	body := decodeSuccess(t, env.doJSON(t, "DELETE", "/api/v1/orders/"+orderID, nil), http.StatusOK, &order)
	if body.Message != "Order cancelled successfully" || order["status"] != "CANCELLED" {
		t.Fatalf("unexpected cancel response %q %v", body.Message, order)
	}

	e = decodeFailure(t, env.doJSON(t, "DELETE", "/api/v1/orders/"+orderID, nil), http.StatusConflict)
	if e.Kind != "InvalidState" {
		t.Errorf("kind = %q", e.Kind)
	}

	// A cancelled order never executes.
	env.setPrice("SBIN", "800")
	decodeSuccess(t, env.doJSON(t, "GET", "/api/v1/orders/"+orderID, nil), http.StatusOK, &order)
	if order["status"] != "CANCELLED" {
		t.Fatalf("status = %v", order["status"])
	}
}

// --- Trades ---

func TestTrades(t *testing.T) {
	env := newTestEnv(t)
	env.placeOrder(t, map[string]any{"symbol": "INFY", "orderType": "BUY", "orderStyle": "MARKET", "quantity": 4})
	env.placeOrder(t, map[string]any{"symbol": "INFY", "orderType": "SELL", "orderStyle": "MARKET", "quantity": 1})

	var trades []map[string]any
	decodeSuccess(t, env.doJSON(t, "GET", "/api/v1/trades", nil), http.StatusOK, &trades)
	if len(trades) != 2 || trades[0]["orderType"] != "BUY" || trades[1]["orderType"] != "SELL" {
		t.Fatalf("unexpected trades %v", trades)
	}

	var stats map[string]any
	decodeSuccess(t, env.doJSON(t, "GET", "/api/v1/trades/stats", nil), http.StatusOK, &stats)
	if stats["totalTrades"] != float64(2) || stats["totalBuyTrades"] != float64(1) || stats["totalSellTrades"] != float64(1) {
		t.Errorf("unexpected stats %v", stats)
	}
	// 5 × 1520.30
	if stats["totalVolume"] != 7601.5 {
		t.Errorf("totalVolume = %v, want 7601.5", stats["totalVolume"])
	}

	decodeFailure(t, env.doJSON(t, "GET", "/api/v1/trades/order/missing", nil), http.StatusNotFound)
}

// --- Portfolio ---

func TestPortfolio(t *testing.T) {
	env := newTestEnv(t)

	var empty map[string]any
	decodeSuccess(t, env.doJSON(t, "GET", "/api/v1/portfolio/summary", nil), http.StatusOK, &empty)
	if empty["totalHoldings"] != float64(0) || empty["totalProfitLossPercentage"] != float64(0) {
		t.Errorf("unexpected empty summary %v", empty)
	}
	if holdings, ok := empty["holdings"].([]any); !ok || len(holdings) != 0 {
		t.Errorf("holdings = %v, want []", empty["holdings"])
	}

	env.placeOrder(t, map[string]any{"symbol": "RELIANCE", "orderType": "BUY", "orderStyle": "MARKET", "quantity": 10})
	env.setPrice("RELIANCE", "2500.75")

	var holdings []map[string]any
	decodeSuccess(t, env.doJSON(t, "GET", "/api/v1/portfolio", nil), http.StatusOK, &holdings)
	if len(holdings) != 1 {
		t.Fatalf("expected 1 holding, got %d", len(holdings))
	}
	h := holdings[0]
	if h["quantity"] != float64(10) || h["averagePrice"] != 2450.75 || h["currentValue"] != 25007.5 || h["profitLoss"] != float64(500) {
		t.Errorf("unexpected holding %v", h)
	}

	var summary map[string]any
	decodeSuccess(t, env.doJSON(t, "GET", "/api/v1/portfolio/summary", nil), http.StatusOK, &summary)
	if summary["totalInvestedValue"] != 24507.5 || summary["totalProfitLoss"] != float64(500) || summary["totalProfitLossPercentage"] != 2.04 {
		t.Errorf("unexpected summary %v", summary)
	}

	var one map[string]any
	decodeSuccess(t, env.doJSON(t, "GET", "/api/v1/portfolio/reliance", nil), http.StatusOK, &one)
	if one["symbol"] != "RELIANCE" {
		t.Errorf("unexpected holding %v", one)
	}
	decodeFailure(t, env.doJSON(t, "GET", "/api/v1/portfolio/TCS", nil), http.StatusNotFound)
}

// --- Simulation ---

func TestSimulation(t *testing.T) {
	env := newTestEnv(t)

	var status map[string]any
	decodeSuccess(t, env.doJSON(t, "GET", "/api/v1/simulation", nil), http.StatusOK, &status)
	if status["running"] != false || status["interval"] != "1h0m0s" {
		t.Fatalf("unexpected status %v", status)
	}

	body := decodeSuccess(t, env.doJSON(t, "POST", "/api/v1/simulation/start", nil), http.StatusOK, &status)
	if body.Message != "Price simulation started" || status["running"] != true {
		t.Fatalf("start: %q %v", body.Message, status)
	}
	body = decodeSuccess(t, env.doJSON(t, "POST", "/api/v1/simulation/start", nil), http.StatusOK, nil)
	if body.Message != "Price simulation already running" {
		t.Errorf("second start: %q", body.Message)
	}

	body = decodeSuccess(t, env.doJSON(t, "POST", "/api/v1/simulation/stop", nil), http.StatusOK, &status)
	if body.Message != "Price simulation stopped" || status["running"] != false {
		t.Fatalf("stop: %q %v", body.Message, status)
	}
	body = decodeSuccess(t, env.doJSON(t, "POST", "/api/v1/simulation/stop", nil), http.StatusOK, nil)
	if body.Message != "Price simulation not running" {
		t.Errorf("second stop: %q", body.Message)
	}
}

func TestSimulation_TickExecutesCrossedOrders(t *testing.T) {
	env := newTestEnv(t)
	// midRand keeps prices fixed, so a limit at the market crosses on the tick.
	env.placeOrder(t, map[string]any{"symbol": "WIPRO", "orderType": "BUY", "orderStyle": "LIMIT", "quantity": 1, "price": 445.60})

	var tick struct {
		Changes    []map[string]any `json:"changes"`
		Executions []map[string]any `json:"executions"`
	}
	decodeSuccess(t, env.doJSON(t, "POST", "/api/v1/simulation/tick", nil), http.StatusOK, &tick)
	if len(tick.Changes) != 15 {
		t.Errorf("expected 15 price changes, got %d", len(tick.Changes))
	}
	if len(tick.Executions) != 1 || field(t, tick.Executions[0], "trade", "executedPrice") != 445.6 {
		t.Fatalf("unexpected executions %v", tick.Executions)
	}
}

// --- Streams ---

func TestStream_Executions(t *testing.T) {
	env := newTestEnv(t)
	server := httptest.NewServer(env.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/executions"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitForSubscribers(t, env.events.Orders)

	// Another user's execution is filtered out.
	env.doRaw(t, "POST", "/api/v1/orders", "application/json",
		`{"symbol":"LT","orderType":"BUY","orderStyle":"MARKET","quantity":1}`, "user_002")
	env.placeOrder(t, map[string]any{"symbol": "LT", "orderType": "BUY", "orderStyle": "MARKET", "quantity": 2})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "executed" {
		t.Fatalf("type = %q", msg.Type)
	}
	if field(t, msg.Data, "order", "userId") != "user_001" || field(t, msg.Data, "trade", "quantity") != float64(2) {
		t.Fatalf("unexpected message %v", msg.Data)
	}
}

func TestStream_Prices(t *testing.T) {
	env := newTestEnv(t)
	server := httptest.NewServer(env.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/prices"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitForSubscribers(t, env.events.Prices)
	env.setPrice("ITC", "430")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string `json:"type"`
		Data struct {
			Changes []map[string]any `json:"changes"`
		} `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "prices" || len(msg.Data.Changes) != 15 {
		t.Fatalf("unexpected message %+v", msg)
	}
	for _, c := range msg.Data.Changes {
		if c["symbol"] == "ITC" && c["newPrice"] != float64(430) {
			t.Errorf("ITC newPrice = %v", c["newPrice"])
		}
	}
}

func TestStream_PricesCarriesSimulationState(t *testing.T) {
	env := newTestEnv(t)
	server := httptest.NewServer(env.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/prices"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitForSubscribers(t, env.events.Prices)
	decodeSuccess(t, env.doJSON(t, "POST", "/api/v1/simulation/start", nil), http.StatusOK, nil)
	defer env.doJSON(t, "POST", "/api/v1/simulation/stop", nil)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < 4; i++ {
		var msg struct {
			Type string         `json:"type"`
			Data map[string]any `json:"data"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type != "simulation" {
			continue
		}
		if msg.Data["running"] != true {
			t.Fatalf("expected running=true, got %v", msg.Data)
		}
		return
	}
	t.Fatal("no simulation message on the price stream")
}

type subscriberCounter interface{ Len() int }

func waitForSubscribers(t *testing.T, hub subscriberCounter) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
