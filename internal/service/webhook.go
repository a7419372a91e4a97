package service

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
)

// Webhook event types.
const (
	EventOrderExecuted  = "order.executed"
	EventOrderCancelled = "order.cancelled"
)

// WebhookNotifier posts execution and cancellation events to a single
// configured URL. Delivery is fire-and-forget.
type WebhookNotifier struct {
	engine.NopListener

	url    string
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewWebhookNotifier creates a notifier posting to url.
func NewWebhookNotifier(url string, timeout time.Duration, logger *slog.Logger) *WebhookNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
		now:    time.Now,
	}
}

// orderExecutedPayload is the JSON payload for order.executed webhooks.
type orderExecutedPayload struct {
	Event     string            `json:"event"`
	Timestamp string            `json:"timestamp"`
	Data      orderExecutedData `json:"data"`
}

type orderExecutedData struct {
	TradeID       string          `json:"tradeId"`
	OrderID       string          `json:"orderId"`
	UserID        string          `json:"userId"`
	Symbol        string          `json:"symbol"`
	OrderType     string          `json:"orderType"`
	OrderStyle    string          `json:"orderStyle"`
	Quantity      int64           `json:"quantity"`
	ExecutedPrice decimal.Decimal `json:"executedPrice"`
	ExecutedAt    time.Time       `json:"executedAt"`
}

// orderCancelledPayload is the JSON payload for order.cancelled webhooks.
type orderCancelledPayload struct {
	Event     string             `json:"event"`
	Timestamp string             `json:"timestamp"`
	Data      orderCancelledData `json:"data"`
}

type orderCancelledData struct {
	OrderID    string           `json:"orderId"`
	UserID     string           `json:"userId"`
	Symbol     string           `json:"symbol"`
	OrderType  string           `json:"orderType"`
	OrderStyle string           `json:"orderStyle"`
	Quantity   int64            `json:"quantity"`
	Price      *decimal.Decimal `json:"price"`
	Status     string           `json:"status"`
}

// OrderExecuted dispatches an order.executed webhook.
func (n *WebhookNotifier) OrderExecuted(exec engine.Execution) {
	payload := orderExecutedPayload{
		Event:     EventOrderExecuted,
		Timestamp: n.timestamp(),
		Data: orderExecutedData{
			TradeID:       exec.Trade.TradeID,
			OrderID:       exec.Order.OrderID,
			UserID:        exec.Order.UserID,
			Symbol:        exec.Trade.Symbol,
			OrderType:     string(exec.Trade.Type),
			OrderStyle:    string(exec.Order.Style),
			Quantity:      exec.Trade.Quantity,
			ExecutedPrice: exec.Trade.ExecutedPrice,
			ExecutedAt:    exec.Trade.ExecutedAt.UTC(),
		},
	}
	go n.deliver(EventOrderExecuted, payload)
}

// OrderCancelled dispatches an order.cancelled webhook.
func (n *WebhookNotifier) OrderCancelled(order *domain.Order) {
	payload := orderCancelledPayload{
		Event:     EventOrderCancelled,
		Timestamp: n.timestamp(),
		Data: orderCancelledData{
			OrderID:    order.OrderID,
			UserID:     order.UserID,
			Symbol:     order.Symbol,
			OrderType:  string(order.Type),
			OrderStyle: string(order.Style),
			Quantity:   order.Quantity,
			Price:      order.Price,
			Status:     string(order.Status),
		},
	}
	go n.deliver(EventOrderCancelled, payload)
}

func (n *WebhookNotifier) timestamp() string {
	return n.now().UTC().Truncate(time.Second).Format(time.RFC3339)
}

// deliver sends the webhook payload via HTTP POST with the required headers.
// Failures are logged and not retried.
func (n *WebhookNotifier) deliver(eventType string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("webhook encode failed", slog.String("event", eventType), slog.String("error", err.Error()))
		return
	}

	req, err := http.NewRequest(http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		n.logger.Warn("webhook request failed", slog.String("event", eventType), slog.String("error", err.Error()))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", uuid.New().String())
	req.Header.Set("X-Event-Type", eventType)

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("webhook delivery failed", slog.String("event", eventType), slog.String("error", err.Error()))
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		n.logger.Warn("webhook rejected", slog.String("event", eventType), slog.Int("status", resp.StatusCode))
	}
}
