package service

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/store"
)

// PlaceOrderRequest represents the input for order placement.
type PlaceOrderRequest struct {
	UserID     string
	Symbol     string
	OrderType  domain.OrderType
	OrderStyle domain.OrderStyle
	Quantity   int64
	Price      *decimal.Decimal // required for LIMIT, must be nil for MARKET

	// PriceMalformed reports a price that was supplied but is not a number.
	PriceMalformed bool
}

// PlaceOrderResult is the outcome of a successful placement. Trade is set
// only for MARKET orders, which execute immediately.
type PlaceOrderResult struct {
	Order *domain.Order
	Trade *domain.Trade
}

// OrderService handles order placement, cancellation and retrieval.
type OrderService struct {
	matcher           *engine.Matcher
	instruments       store.InstrumentRepository
	orders            store.OrderRepository
	trades            store.TradeRepository
	allowShortSelling bool
	logger            *slog.Logger
}

// NewOrderService creates a new OrderService with the given dependencies.
func NewOrderService(
	matcher *engine.Matcher,
	instruments store.InstrumentRepository,
	orders store.OrderRepository,
	trades store.TradeRepository,
	allowShortSelling bool,
	logger *slog.Logger,
) *OrderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderService{
		matcher:           matcher,
		instruments:       instruments,
		orders:            orders,
		trades:            trades,
		allowShortSelling: allowShortSelling,
		logger:            logger,
	}
}

// PlaceOrder validates the request and hands the order to the matcher.
// An unknown symbol fails with domain.ErrInstrumentNotFound before any field
// validation; every other violation is collected into one ValidationError.
func (s *OrderService) PlaceOrder(req PlaceOrderRequest) (PlaceOrderResult, error) {
	if !s.instruments.Exists(req.Symbol) {
		return PlaceOrderResult{}, domain.ErrInstrumentNotFound
	}

	if verr := validatePlaceOrder(req); !verr.Empty() {
		s.logger.Debug("order rejected",
			slog.String("user_id", req.UserID),
			slog.String("symbol", req.Symbol),
			slog.String("error", verr.Error()),
		)
		return PlaceOrderResult{}, verr
	}

	order := &domain.Order{
		UserID:   req.UserID,
		Symbol:   req.Symbol,
		Type:     req.OrderType,
		Style:    req.OrderStyle,
		Quantity: req.Quantity,
	}
	if req.Price != nil {
		p := *req.Price
		order.Price = &p
	}

	var guard engine.Guard
	if !s.allowShortSelling && order.Type == domain.OrderTypeSell {
		guard = s.sellGuard
	}

	exec, err := s.matcher.Place(order, guard)
	if err != nil {
		return PlaceOrderResult{}, err
	}
	return PlaceOrderResult{Order: exec.Order, Trade: exec.Trade}, nil
}

// validatePlaceOrder collects every violated constraint of req.
func validatePlaceOrder(req PlaceOrderRequest) *domain.ValidationError {
	verr := &domain.ValidationError{}
	if req.UserID == "" {
		verr.Add(domain.CodeUserRequired, "User ID is required")
	}
	if !req.OrderType.Valid() {
		verr.Add(domain.CodeInvalidOrderType, "Order type must be BUY or SELL")
	}
	if !req.OrderStyle.Valid() {
		verr.Add(domain.CodeInvalidOrderStyle, "Order style must be MARKET or LIMIT")
	}
	if req.Quantity <= 0 {
		verr.Add(domain.CodeInvalidQuantity, "Quantity must be greater than 0")
	}

	switch req.OrderStyle {
	case domain.OrderStyleLimit:
		switch {
		case req.PriceMalformed:
			verr.Add(domain.CodeInvalidPrice, "Price must be a number")
		case req.Price == nil:
			verr.Add(domain.CodePriceRequired, "Price is mandatory for LIMIT orders")
		case !req.Price.IsPositive():
			verr.Add(domain.CodeInvalidPrice, "Price must be greater than 0")
		case !req.Price.Equal(domain.Round2(*req.Price)):
			verr.Add(domain.CodeInvalidPrice, "Price must have at most 2 decimal places")
		}
	case domain.OrderStyleMarket:
		if req.Price != nil || req.PriceMalformed {
			verr.Add(domain.CodePriceNotAllowed, "Price must not be set for MARKET orders")
		}
	default:
		if req.PriceMalformed {
			verr.Add(domain.CodeInvalidPrice, "Price must be a number")
		}
	}
	return verr
}

// sellGuard rejects a SELL that exceeds the user's uncommitted long
// position. It runs under the matcher lock.
func (s *OrderService) sellGuard(o *domain.Order) error {
	available := s.availableToSell(o.UserID, o.Symbol)
	if available >= o.Quantity {
		return nil
	}
	verr := &domain.ValidationError{}
	verr.Add(domain.CodeInsufficientQuantity, "Insufficient quantity in portfolio for SELL order")
	return verr
}

// availableToSell is the net traded quantity minus quantity already
// committed to the user's resting SELL LIMIT orders.
func (s *OrderService) availableToSell(userID, symbol string) int64 {
	var net int64
	for _, t := range s.trades.ListByUser(userID) {
		if t.Symbol != symbol {
			continue
		}
		if t.Type == domain.OrderTypeBuy {
			net += t.Quantity
		} else {
			net -= t.Quantity
		}
	}

	placed := domain.OrderStatusPlaced
	for _, o := range s.orders.ListByUser(userID, &placed) {
		if o.Symbol == symbol && o.Type == domain.OrderTypeSell && o.Style == domain.OrderStyleLimit {
			net -= o.Quantity
		}
	}
	return net
}

// CancelOrder cancels a PLACED order owned by userID.
func (s *OrderService) CancelOrder(orderID, userID string) (*domain.Order, error) {
	return s.matcher.Cancel(orderID, userID)
}

// GetOrder retrieves an order by ID.
func (s *OrderService) GetOrder(orderID string) (*domain.Order, error) {
	return s.orders.Get(orderID)
}

// ListUserOrders returns a user's orders in placement order, optionally
// filtered by status.
func (s *OrderService) ListUserOrders(userID string, status *domain.OrderStatus) ([]*domain.Order, error) {
	if status != nil && !status.Valid() {
		verr := &domain.ValidationError{}
		verr.Add(domain.CodeInvalidStatus, "Status must be one of NEW, PLACED, EXECUTED, CANCELLED")
		return nil, verr
	}
	return s.orders.ListByUser(userID, status), nil
}
