package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderType indicates whether an order buys or sells.
type OrderType string

const (
	OrderTypeBuy  OrderType = "BUY"
	OrderTypeSell OrderType = "SELL"
)

// Valid reports whether t is BUY or SELL.
func (t OrderType) Valid() bool {
	return t == OrderTypeBuy || t == OrderTypeSell
}

// OrderStyle distinguishes market orders from limit orders.
type OrderStyle string

const (
	OrderStyleMarket OrderStyle = "MARKET"
	OrderStyleLimit  OrderStyle = "LIMIT"
)

// Valid reports whether s is MARKET or LIMIT.
func (s OrderStyle) Valid() bool {
	return s == OrderStyleMarket || s == OrderStyleLimit
}

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "NEW"
	OrderStatusPlaced    OrderStatus = "PLACED"
	OrderStatusExecuted  OrderStatus = "EXECUTED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusNew, OrderStatusPlaced, OrderStatusExecuted, OrderStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusExecuted || s == OrderStatusCancelled
}

// orderTransitions lists the allowed edges of the order state machine.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusNew:    {OrderStatusPlaced},
	OrderStatusPlaced: {OrderStatusExecuted, OrderStatusCancelled},
}

// Order is a BUY or SELL instruction placed by a user.
type Order struct {
	OrderID   string
	UserID    string
	Symbol    string
	Type      OrderType
	Style     OrderStyle
	Quantity  int64
	Price     *decimal.Decimal // limit trigger price, nil for market orders
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TransitionTo moves the order to next if the state machine allows it.
// It returns ErrInvalidTransition otherwise and leaves the order untouched.
func (o *Order) TransitionTo(next OrderStatus, at time.Time) error {
	for _, allowed := range orderTransitions[o.Status] {
		if allowed == next {
			o.Status = next
			o.UpdatedAt = at
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
}

// Crosses reports whether a resting limit order is eligible to execute at
// the given market price. A BUY crosses when market <= limit, a SELL when
// market >= limit. Market orders and orders without a price never cross.
func (o *Order) Crosses(market decimal.Decimal) bool {
	if o.Style != OrderStyleLimit || o.Price == nil {
		return false
	}
	switch o.Type {
	case OrderTypeBuy:
		return market.LessThanOrEqual(*o.Price)
	case OrderTypeSell:
		return market.GreaterThanOrEqual(*o.Price)
	}
	return false
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	c := *o
	if o.Price != nil {
		p := *o.Price
		c.Price = &p
	}
	return &c
}
