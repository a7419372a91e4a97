package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/service"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
	logger   *slog.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc, logger: logger}
}

// placeOrderRequest is the JSON request body for POST /api/v1/orders.
// Quantity and price are decoded leniently so that malformed values are
// reported together with every other violation.
type placeOrderRequest struct {
	Symbol     string          `json:"symbol"`
	OrderType  string          `json:"orderType"`
	OrderStyle string          `json:"orderStyle"`
	Quantity   json.RawMessage `json:"quantity"`
	Price      json.RawMessage `json:"price"`
}

// PlaceOrder handles POST /api/v1/orders.
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, domain.KindValidation, err.Error())
		return
	}

	price, ok := parsePrice(req.Price)
	res, err := h.orderSvc.PlaceOrder(service.PlaceOrderRequest{
		UserID:     UserID(r),
		Symbol:     strings.ToUpper(strings.TrimSpace(req.Symbol)),
		OrderType:  domain.OrderType(req.OrderType),
		OrderStyle: domain.OrderStyle(req.OrderStyle),
		Quantity:   parseQuantity(req.Quantity),
		Price:      price,

		PriceMalformed: !ok,
	})
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	message := "Order placed successfully"
	if res.Order.Status == domain.OrderStatusExecuted {
		message = "Order executed successfully"
	}
	WriteSuccess(w, http.StatusCreated, message, newExecutionView(res.Order, res.Trade))
}

// ListOrders handles GET /api/v1/orders?status=STATUS.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	var status *domain.OrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := domain.OrderStatus(strings.ToUpper(raw))
		status = &s
	}

	orders, err := h.orderSvc.ListUserOrders(UserID(r), status)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteSuccess(w, http.StatusOK, "Orders fetched successfully", newOrderViews(orders))
}

// GetOrder handles GET /api/v1/orders/{orderID}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderSvc.GetOrder(chi.URLParam(r, "orderID"))
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteSuccess(w, http.StatusOK, "Order fetched successfully", newOrderView(order))
}

// CancelOrder handles DELETE /api/v1/orders/{orderID}.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderSvc.CancelOrder(chi.URLParam(r, "orderID"), UserID(r))
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteSuccess(w, http.StatusOK, "Order cancelled successfully", newOrderView(order))
}

// parseQuantity returns the integer value of raw, or 0 when raw is missing,
// not a number, fractional or out of range.
func parseQuantity(raw json.RawMessage) int64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' {
		return 0
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil || !d.IsInteger() {
		return 0
	}
	if d.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || d.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return 0
	}
	return d.IntPart()
}

// parsePrice decodes an optional price. A missing or null price is nil.
func parsePrice(raw json.RawMessage) (*decimal.Decimal, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, true
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(raw); err != nil {
		return nil, false
	}
	return &d, true
}
