package engine

import "github.com/efreitasn/papertrade/internal/domain"

// Execution pairs an executed order with the trade it produced.
type Execution struct {
	Order *domain.Order
	Trade *domain.Trade
}

// Listener receives engine events. Callbacks run after the engine lock is
// released, on the goroutine that caused the event, and must not block.
type Listener interface {
	PricesUpdated(changes []domain.PriceChange)
	OrderExecuted(exec Execution)
	OrderCancelled(order *domain.Order)
	SimulationStateChanged(running bool)
}

// NopListener ignores every event. Embed it to implement only part of Listener.
type NopListener struct{}

func (NopListener) PricesUpdated([]domain.PriceChange) {}
func (NopListener) OrderExecuted(Execution)            {}
func (NopListener) OrderCancelled(*domain.Order)       {}
func (NopListener) SimulationStateChanged(bool)        {}

// Listeners fans every event out to each listener in order.
type Listeners []Listener

func (ls Listeners) PricesUpdated(changes []domain.PriceChange) {
	for _, l := range ls {
		l.PricesUpdated(changes)
	}
}

func (ls Listeners) OrderExecuted(exec Execution) {
	for _, l := range ls {
		l.OrderExecuted(exec)
	}
}

func (ls Listeners) OrderCancelled(order *domain.Order) {
	for _, l := range ls {
		l.OrderCancelled(order)
	}
}

func (ls Listeners) SimulationStateChanged(running bool) {
	for _, l := range ls {
		l.SimulationStateChanged(running)
	}
}
