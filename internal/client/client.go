// Package client is a typed client for the papertrade HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Instrument mirrors the instrument resource.
type Instrument struct {
	Symbol          string          `json:"symbol"`
	Exchange        string          `json:"exchange"`
	InstrumentType  string          `json:"instrumentType"`
	LastTradedPrice decimal.Decimal `json:"lastTradedPrice"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Order mirrors the order resource.
type Order struct {
	OrderID    string           `json:"orderId"`
	UserID     string           `json:"userId"`
	Symbol     string           `json:"symbol"`
	OrderType  string           `json:"orderType"`
	OrderStyle string           `json:"orderStyle"`
	Quantity   int64            `json:"quantity"`
	Price      *decimal.Decimal `json:"price"`
	Status     string           `json:"status"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// Trade mirrors the trade resource.
type Trade struct {
	TradeID       string          `json:"tradeId"`
	OrderID       string          `json:"orderId"`
	UserID        string          `json:"userId"`
	Symbol        string          `json:"symbol"`
	OrderType     string          `json:"orderType"`
	Quantity      int64           `json:"quantity"`
	ExecutedPrice decimal.Decimal `json:"executedPrice"`
	TotalValue    decimal.Decimal `json:"totalValue"`
	ExecutedAt    time.Time       `json:"executedAt"`
}

// Execution is the result of placing an order. Trade is nil while the
// order rests.
type Execution struct {
	Order Order  `json:"order"`
	Trade *Trade `json:"trade"`
}

// Holding mirrors one portfolio position.
type Holding struct {
	Symbol        string          `json:"symbol"`
	Quantity      int64           `json:"quantity"`
	AveragePrice  decimal.Decimal `json:"averagePrice"`
	InvestedValue decimal.Decimal `json:"investedValue"`
	CurrentValue  decimal.Decimal `json:"currentValue"`
	ProfitLoss    decimal.Decimal `json:"profitLoss"`
}

// PortfolioSummary mirrors the portfolio summary resource.
type PortfolioSummary struct {
	TotalHoldings             int             `json:"totalHoldings"`
	TotalInvestedValue        decimal.Decimal `json:"totalInvestedValue"`
	TotalCurrentValue         decimal.Decimal `json:"totalCurrentValue"`
	TotalProfitLoss           decimal.Decimal `json:"totalProfitLoss"`
	TotalProfitLossPercentage decimal.Decimal `json:"totalProfitLossPercentage"`
	Holdings                  []Holding       `json:"holdings"`
}

// TradeStats mirrors the trade statistics resource.
type TradeStats struct {
	TotalTrades     int             `json:"totalTrades"`
	TotalBuyTrades  int             `json:"totalBuyTrades"`
	TotalSellTrades int             `json:"totalSellTrades"`
	TotalVolume     decimal.Decimal `json:"totalVolume"`
}

// SimulationStatus mirrors the simulator status resource.
type SimulationStatus struct {
	Running       bool       `json:"running"`
	Interval      string     `json:"interval"`
	Volatility    float64    `json:"volatility"`
	Ticks         int64      `json:"ticks"`
	LastTickAt    *time.Time `json:"lastTickAt"`
	RestingOrders int        `json:"restingOrders"`
}

// PlaceOrderRequest is the body of an order placement.
type PlaceOrderRequest struct {
	Symbol     string           `json:"symbol"`
	OrderType  string           `json:"orderType"`
	OrderStyle string           `json:"orderStyle"`
	Quantity   int64            `json:"quantity"`
	Price      *decimal.Decimal `json:"price,omitempty"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Kind    string   `json:"kind"`
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%d %s: %s", e.Status, e.Kind, e.Message)
	if len(e.Errors) > 0 {
		msg += " (" + strings.Join(e.Errors, "; ") + ")"
	}
	return msg
}

// Client calls the API at a base URL.
type Client struct {
	baseURL string
	http    *http.Client
	userID  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithUser sends every request on behalf of userID.
func WithUser(userID string) Option {
	return func(c *Client) { c.userID = userID }
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health checks /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *Client) Instruments(ctx context.Context) ([]Instrument, error) {
	var out []Instrument
	return out, c.call(ctx, http.MethodGet, "/api/v1/instruments", nil, &out)
}

func (c *Client) Instrument(ctx context.Context, symbol string) (Instrument, error) {
	var out Instrument
	return out, c.call(ctx, http.MethodGet, "/api/v1/instruments/"+url.PathEscape(symbol), nil, &out)
}

func (c *Client) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (Execution, error) {
	var out Execution
	return out, c.call(ctx, http.MethodPost, "/api/v1/orders", req, &out)
}

// Orders lists the user's orders. An empty status lists all of them.
func (c *Client) Orders(ctx context.Context, status string) ([]Order, error) {
	path := "/api/v1/orders"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var out []Order
	return out, c.call(ctx, http.MethodGet, path, nil, &out)
}

func (c *Client) Order(ctx context.Context, orderID string) (Order, error) {
	var out Order
	return out, c.call(ctx, http.MethodGet, "/api/v1/orders/"+url.PathEscape(orderID), nil, &out)
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) (Order, error) {
	var out Order
	return out, c.call(ctx, http.MethodDelete, "/api/v1/orders/"+url.PathEscape(orderID), nil, &out)
}

func (c *Client) Trades(ctx context.Context) ([]Trade, error) {
	var out []Trade
	return out, c.call(ctx, http.MethodGet, "/api/v1/trades", nil, &out)
}

func (c *Client) TradeStats(ctx context.Context) (TradeStats, error) {
	var out TradeStats
	return out, c.call(ctx, http.MethodGet, "/api/v1/trades/stats", nil, &out)
}

func (c *Client) Portfolio(ctx context.Context) ([]Holding, error) {
	var out []Holding
	return out, c.call(ctx, http.MethodGet, "/api/v1/portfolio", nil, &out)
}

func (c *Client) PortfolioSummary(ctx context.Context) (PortfolioSummary, error) {
	var out PortfolioSummary
	return out, c.call(ctx, http.MethodGet, "/api/v1/portfolio/summary", nil, &out)
}

func (c *Client) Simulation(ctx context.Context) (SimulationStatus, error) {
	var out SimulationStatus
	return out, c.call(ctx, http.MethodGet, "/api/v1/simulation", nil, &out)
}

func (c *Client) StartSimulation(ctx context.Context) (SimulationStatus, error) {
	var out SimulationStatus
	return out, c.call(ctx, http.MethodPost, "/api/v1/simulation/start", nil, &out)
}

func (c *Client) StopSimulation(ctx context.Context) (SimulationStatus, error) {
	var out SimulationStatus
	return out, c.call(ctx, http.MethodPost, "/api/v1/simulation/stop", nil, &out)
}

// envelope is the success wrapper of every /api/v1 response.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// call performs an /api/v1 request and decodes the envelope data into out.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var env envelope
	if err := c.do(ctx, method, path, body, &env); err != nil {
		return err
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set("X-User-Id", c.userID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Error *APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != nil {
		apiErr.Kind = body.Error.Kind
		apiErr.Message = body.Error.Message
		apiErr.Errors = body.Error.Errors
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
