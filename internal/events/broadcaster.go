package events

import (
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
)

// OrderEventKind names what happened to an order.
type OrderEventKind string

const (
	OrderEventExecuted  OrderEventKind = "executed"
	OrderEventCancelled OrderEventKind = "cancelled"
)

// OrderEvent is one order lifecycle event. Trade is nil for cancellations.
type OrderEvent struct {
	Kind  OrderEventKind
	Order *domain.Order
	Trade *domain.Trade
}

// PriceBatch is the set of price changes produced by one tick.
type PriceBatch struct {
	At      time.Time
	Changes []domain.PriceChange
}

// SimulationEvent reports a simulator start or stop.
type SimulationEvent struct {
	Running bool
	At      time.Time
}

// Broadcaster is an engine.Listener that republishes engine events on hubs.
type Broadcaster struct {
	Prices     *Hub[PriceBatch]
	Orders     *Hub[OrderEvent]
	Simulation *Hub[SimulationEvent]

	now func() time.Time
}

// NewBroadcaster creates a broadcaster with empty hubs.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		Prices:     NewHub[PriceBatch](),
		Orders:     NewHub[OrderEvent](),
		Simulation: NewHub[SimulationEvent](),
		now:        time.Now,
	}
}

var _ engine.Listener = (*Broadcaster)(nil)

func (b *Broadcaster) PricesUpdated(changes []domain.PriceChange) {
	if len(changes) == 0 {
		return
	}
	at := changes[0].At
	if at.IsZero() {
		at = b.now()
	}
	b.Prices.Broadcast(PriceBatch{At: at, Changes: changes})
}

func (b *Broadcaster) OrderExecuted(exec engine.Execution) {
	b.Orders.Broadcast(OrderEvent{Kind: OrderEventExecuted, Order: exec.Order, Trade: exec.Trade})
}

func (b *Broadcaster) OrderCancelled(order *domain.Order) {
	b.Orders.Broadcast(OrderEvent{Kind: OrderEventCancelled, Order: order})
}

func (b *Broadcaster) SimulationStateChanged(running bool) {
	b.Simulation.Broadcast(SimulationEvent{Running: running, At: b.now()})
}
