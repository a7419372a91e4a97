package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is the immutable record of a single order execution.
type Trade struct {
	TradeID       string
	OrderID       string
	UserID        string
	Symbol        string
	Type          OrderType
	Quantity      int64
	ExecutedPrice decimal.Decimal
	ExecutedAt    time.Time
}

// Value returns quantity × executed price.
func (t *Trade) Value() decimal.Decimal {
	return t.ExecutedPrice.Mul(decimal.NewFromInt(t.Quantity))
}
