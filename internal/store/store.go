// Package store holds the process-wide in-memory state: the instrument
// registry, the order store and the trade ledger. Every store is safe for
// concurrent use and hands out copies, never its internal pointers.
package store

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
)

// InstrumentRepository is the read/price-update surface of the instrument registry.
type InstrumentRepository interface {
	List() []domain.Instrument
	Get(symbol string) (domain.Instrument, error)
	Exists(symbol string) bool
	UpdatePrice(symbol string, price decimal.Decimal, at time.Time) error
	Count() int
}

// OrderRepository stores every order ever placed.
type OrderRepository interface {
	Create(o *domain.Order)
	Get(id string) (*domain.Order, error)
	Update(o *domain.Order) error
	ListByUser(userID string, status *domain.OrderStatus) []*domain.Order
	ListByStatus(status domain.OrderStatus) []*domain.Order
	Count() int
}

// TradeRepository is the append-only execution ledger.
type TradeRepository interface {
	Append(t *domain.Trade) error
	ListByUser(userID string) []*domain.Trade
	ListByOrder(orderID string) []*domain.Trade
	Count() int
}

// Stats summarizes store sizes.
type Stats struct {
	Instruments int
	Orders      int
	Trades      int
}

// CollectStats reads the sizes of the three stores.
func CollectStats(instruments InstrumentRepository, orders OrderRepository, trades TradeRepository) Stats {
	return Stats{
		Instruments: instruments.Count(),
		Orders:      orders.Count(),
		Trades:      trades.Count(),
	}
}
