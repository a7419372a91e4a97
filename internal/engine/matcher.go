package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/store"
)

// Guard is consulted under the matcher lock before an order is accepted.
// Returning an error rejects the placement with no state change.
type Guard func(o *domain.Order) error

// PriceStep computes the next price of an instrument during a tick.
type PriceStep func(in domain.Instrument) decimal.Decimal

// TickResult reports what a single price tick changed.
type TickResult struct {
	At         time.Time
	Changes    []domain.PriceChange
	Executions []Execution
}

// Matcher executes MARKET orders at the last traded price and fills resting
// LIMIT orders once the market crosses their trigger price.
//
// A single mutex serializes every mutation of prices, orders and trades, so
// a MARKET order never sees a half-applied tick and a LIMIT order is never
// filled twice or filled after it was cancelled.
type Matcher struct {
	mu          sync.Mutex
	books       *BookManager
	instruments store.InstrumentRepository
	orders      store.OrderRepository
	trades      store.TradeRepository
	listener    Listener
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string
}

// NewMatcher creates a Matcher and loads every PLACED limit order already in
// the order store onto the book.
func NewMatcher(
	instruments store.InstrumentRepository,
	orders store.OrderRepository,
	trades store.TradeRepository,
	listener Listener,
	logger *slog.Logger,
) *Matcher {
	if listener == nil {
		listener = NopListener{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Matcher{
		books:       NewBookManager(),
		instruments: instruments,
		orders:      orders,
		trades:      trades,
		listener:    listener,
		logger:      logger,
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
	}
	m.Resync()
	return m
}

// SetClock replaces the time source used for order and trade timestamps.
func (m *Matcher) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Resync rebuilds the book from the PLACED limit orders in the order store.
func (m *Matcher) Resync() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.books = NewBookManager()
	for _, o := range m.orders.ListByStatus(domain.OrderStatusPlaced) {
		if o.Style != domain.OrderStyleLimit {
			continue
		}
		m.books.GetOrCreate(o.Symbol).Insert(o)
	}
}

// Place accepts a new order. The caller provides UserID, Symbol, Type, Style,
// Quantity and Price; the matcher assigns OrderID and timestamps and drives
// the status machine.
//
// A MARKET order is filled at the instrument's last traded price before Place
// returns. A LIMIT order is stored as PLACED and waits for a tick. On error
// nothing is stored.
func (m *Matcher) Place(o *domain.Order, guard Guard) (Execution, error) {
	m.mu.Lock()

	in, err := m.instruments.Get(o.Symbol)
	if err != nil {
		m.mu.Unlock()
		return Execution{}, fmt.Errorf("place order for %s: %w", o.Symbol, err)
	}
	if guard != nil {
		if err := guard(o); err != nil {
			m.mu.Unlock()
			return Execution{}, err
		}
	}

	now := m.now()
	o.OrderID = m.newID()
	o.Status = domain.OrderStatusNew
	o.CreatedAt = now
	o.UpdatedAt = now
	if err := o.TransitionTo(domain.OrderStatusPlaced, now); err != nil {
		m.mu.Unlock()
		return Execution{}, err
	}

	if o.Style == domain.OrderStyleLimit {
		m.orders.Create(o)
		m.books.GetOrCreate(o.Symbol).Insert(o)
		m.mu.Unlock()

		m.logger.Info("limit order placed",
			slog.String("order_id", o.OrderID),
			slog.String("symbol", o.Symbol),
			slog.String("type", string(o.Type)),
			slog.String("limit", o.Price.StringFixed(domain.PricePlaces)),
		)
		return Execution{Order: o.Clone()}, nil
	}

	if err := o.TransitionTo(domain.OrderStatusExecuted, now); err != nil {
		m.mu.Unlock()
		return Execution{}, err
	}
	trade := m.newTrade(o, in.LastTradedPrice, now)
	if err := m.trades.Append(trade); err != nil {
		m.mu.Unlock()
		return Execution{}, fmt.Errorf("record trade for order %s: %w", o.OrderID, err)
	}
	m.orders.Create(o)
	m.mu.Unlock()

	exec := Execution{Order: o.Clone(), Trade: copyTrade(trade)}
	m.logExecution(exec)
	m.listener.OrderExecuted(exec)
	return exec, nil
}

// Cancel moves a PLACED order owned by userID to CANCELLED and takes it off
// the book.
func (m *Matcher) Cancel(orderID, userID string) (*domain.Order, error) {
	m.mu.Lock()

	o, err := m.orders.Get(orderID)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if o.UserID != userID {
		m.mu.Unlock()
		return nil, domain.ErrOrderNotOwned
	}
	if o.Status != domain.OrderStatusPlaced {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: order is %s", domain.ErrOrderNotCancellable, o.Status)
	}
	if err := o.TransitionTo(domain.OrderStatusCancelled, m.now()); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if err := m.orders.Update(o); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if book, ok := m.books.Get(o.Symbol); ok {
		book.Remove(o.OrderID)
	}
	m.mu.Unlock()

	m.logger.Info("order cancelled",
		slog.String("order_id", o.OrderID),
		slog.String("symbol", o.Symbol),
	)
	m.listener.OrderCancelled(o.Clone())
	return o, nil
}

// Match fills every resting limit order crossed by the current prices.
func (m *Matcher) Match() []Execution {
	m.mu.Lock()
	execs := m.matchLocked(m.now())
	m.mu.Unlock()

	m.publishExecutions(execs)
	return execs
}

// Tick applies step to every instrument and then runs matching exactly once,
// all under one lock. Instruments for which step yields a non-positive price
// are skipped and logged.
func (m *Matcher) Tick(step PriceStep) TickResult {
	m.mu.Lock()
	now := m.now()
	res := TickResult{At: now}

	for _, in := range m.instruments.List() {
		next := domain.Round2(step(in))
		if !next.IsPositive() {
			m.logger.Warn("skipping non-positive price",
				slog.String("symbol", in.Symbol),
				slog.String("price", next.String()),
			)
			continue
		}
		if err := m.instruments.UpdatePrice(in.Symbol, next, now); err != nil {
			m.logger.Warn("price update failed",
				slog.String("symbol", in.Symbol),
				slog.String("error", err.Error()),
			)
			continue
		}
		res.Changes = append(res.Changes, domain.PriceChange{
			Symbol:   in.Symbol,
			OldPrice: in.LastTradedPrice,
			NewPrice: next,
			At:       now,
		})
	}
	res.Executions = m.matchLocked(now)
	m.mu.Unlock()

	for _, c := range res.Changes {
		m.logger.Debug("price updated",
			slog.String("symbol", c.Symbol),
			slog.String("old", c.OldPrice.StringFixed(domain.PricePlaces)),
			slog.String("new", c.NewPrice.StringFixed(domain.PricePlaces)),
		)
	}
	m.listener.PricesUpdated(res.Changes)
	m.publishExecutions(res.Executions)
	return res
}

// Depth returns up to n aggregated levels per side of the resting limit
// orders for symbol.
func (m *Matcher) Depth(symbol string, n int) (Depth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.instruments.Exists(symbol) {
		return Depth{}, domain.ErrInstrumentNotFound
	}
	d := Depth{Symbol: symbol, Bids: []PriceLevel{}, Asks: []PriceLevel{}}
	if book, ok := m.books.Get(symbol); ok {
		d.Bids = book.TopBids(n)
		d.Asks = book.TopAsks(n)
		d.BidOrders = book.BidCount()
		d.AskOrders = book.AskCount()
	}
	return d, nil
}

// RestingCount returns the number of limit orders waiting on the book.
func (m *Matcher) RestingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.books.Len()
}

// matchLocked must be called with m.mu held. Orders are evaluated
// independently; a failure on one order is logged and the rest proceed.
func (m *Matcher) matchLocked(now time.Time) []Execution {
	var execs []Execution
	for _, symbol := range m.books.Symbols() {
		book, _ := m.books.Get(symbol)
		in, err := m.instruments.Get(symbol)
		if err != nil {
			m.logger.Warn("skipping resting orders for unknown instrument",
				slog.String("symbol", symbol),
				slog.Int("orders", book.Len()),
			)
			continue
		}
		for _, entry := range book.Crossed(in.LastTradedPrice) {
			exec, ok := m.fill(book, entry.OrderID, in.LastTradedPrice, now)
			if ok {
				execs = append(execs, exec)
			}
		}
	}
	return execs
}

// fill executes one crossed order at market. The stored order is re-read so
// a stale book entry is dropped rather than filled.
func (m *Matcher) fill(book *OrderBook, orderID string, market decimal.Decimal, now time.Time) (Execution, bool) {
	o, err := m.orders.Get(orderID)
	if err != nil {
		m.logger.Warn("dropping unknown resting order",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
		book.Remove(orderID)
		return Execution{}, false
	}
	if o.Status != domain.OrderStatusPlaced {
		book.Remove(orderID)
		return Execution{}, false
	}
	if !o.Crosses(market) {
		return Execution{}, false
	}
	if err := o.TransitionTo(domain.OrderStatusExecuted, now); err != nil {
		m.logger.Warn("skipping order",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
		return Execution{}, false
	}

	trade := m.newTrade(o, market, now)
	if err := m.trades.Append(trade); err != nil {
		m.logger.Error("recording trade failed",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
		book.Remove(orderID)
		return Execution{}, false
	}
	if err := m.orders.Update(o); err != nil {
		m.logger.Error("updating executed order failed",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}
	book.Remove(orderID)
	return Execution{Order: o, Trade: copyTrade(trade)}, true
}

func (m *Matcher) newTrade(o *domain.Order, price decimal.Decimal, at time.Time) *domain.Trade {
	return &domain.Trade{
		TradeID:       m.newID(),
		OrderID:       o.OrderID,
		UserID:        o.UserID,
		Symbol:        o.Symbol,
		Type:          o.Type,
		Quantity:      o.Quantity,
		ExecutedPrice: domain.Round2(price),
		ExecutedAt:    at,
	}
}

func (m *Matcher) publishExecutions(execs []Execution) {
	for _, e := range execs {
		m.logExecution(e)
		m.listener.OrderExecuted(e)
	}
}

func (m *Matcher) logExecution(e Execution) {
	m.logger.Info("order executed",
		slog.String("order_id", e.Order.OrderID),
		slog.String("trade_id", e.Trade.TradeID),
		slog.String("symbol", e.Trade.Symbol),
		slog.String("type", string(e.Trade.Type)),
		slog.String("style", string(e.Order.Style)),
		slog.Int64("quantity", e.Trade.Quantity),
		slog.String("price", e.Trade.ExecutedPrice.StringFixed(domain.PricePlaces)),
	)
}

func copyTrade(t *domain.Trade) *domain.Trade {
	c := *t
	return &c
}
