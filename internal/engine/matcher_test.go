package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/store"
)

// recordingListener captures engine events for assertions.
type recordingListener struct {
	mu        sync.Mutex
	prices    [][]domain.PriceChange
	executed  []Execution
	cancelled []*domain.Order
	states    []bool
}

func (r *recordingListener) PricesUpdated(c []domain.PriceChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prices = append(r.prices, c)
}

func (r *recordingListener) OrderExecuted(e Execution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executed = append(r.executed, e)
}

func (r *recordingListener) OrderCancelled(o *domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, o)
}

func (r *recordingListener) SimulationStateChanged(running bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, running)
}

func (r *recordingListener) executions() []Execution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Execution(nil), r.executed...)
}

type testStores struct {
	instruments *store.InstrumentRegistry
	orders      *store.OrderStore
	trades      *store.TradeLedger
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestMatcher creates a Matcher over instrument X priced at 100 and the
// given extra instruments, with a fixed clock and sequential ids.
func newTestMatcher(extra ...domain.Instrument) (*Matcher, testStores, *recordingListener) {
	seed := append([]domain.Instrument{{
		Symbol:          "X",
		Exchange:        domain.ExchangeNSE,
		Type:            domain.InstrumentTypeEquity,
		LastTradedPrice: decimal.NewFromInt(100),
	}}, extra...)
	s := testStores{
		instruments: store.NewInstrumentRegistry(seed),
		orders:      store.NewOrderStore(),
		trades:      store.NewTradeLedger(),
	}
	l := &recordingListener{}
	m := NewMatcher(s.instruments, s.orders, s.trades, l, discardLogger())

	clock := baseTime
	m.SetClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	})
	seq := 0
	m.newID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	return m, s, l
}

func limitOrder(typ domain.OrderType, symbol, limit string, qty int64) *domain.Order {
	p := domain.MustPrice(limit)
	return &domain.Order{
		UserID:   "user-1",
		Symbol:   symbol,
		Type:     typ,
		Style:    domain.OrderStyleLimit,
		Quantity: qty,
		Price:    &p,
	}
}

func marketOrder(typ domain.OrderType, symbol string, qty int64) *domain.Order {
	return &domain.Order{
		UserID:   "user-1",
		Symbol:   symbol,
		Type:     typ,
		Style:    domain.OrderStyleMarket,
		Quantity: qty,
	}
}

func setPrice(t *testing.T, s testStores, symbol, price string) {
	t.Helper()
	if err := s.instruments.UpdatePrice(symbol, domain.MustPrice(price), baseTime); err != nil {
		t.Fatalf("set price: %v", err)
	}
}

func TestPlace_MarketExecutesAtLastTradedPrice(t *testing.T) {
	m, s, l := newTestMatcher()

	exec, err := m.Place(marketOrder(domain.OrderTypeBuy, "X", 10), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.Order.Status != domain.OrderStatusExecuted {
		t.Errorf("expected EXECUTED, got %s", exec.Order.Status)
	}
	if exec.Order.OrderID == "" {
		t.Error("expected order_id to be assigned")
	}
	if exec.Trade == nil {
		t.Fatal("expected a trade")
	}
	if !exec.Trade.ExecutedPrice.Equal(decimal.NewFromInt(100)) || exec.Trade.Quantity != 10 {
		t.Errorf("unexpected trade: %+v", exec.Trade)
	}
	if exec.Trade.OrderID != exec.Order.OrderID || exec.Trade.Type != domain.OrderTypeBuy {
		t.Errorf("trade not linked to order: %+v", exec.Trade)
	}

	stored, err := s.orders.Get(exec.Order.OrderID)
	if err != nil || stored.Status != domain.OrderStatusExecuted {
		t.Fatalf("stored order: %+v, err %v", stored, err)
	}
	if got := s.trades.ListByOrder(exec.Order.OrderID); len(got) != 1 {
		t.Fatalf("expected 1 trade in ledger, got %d", len(got))
	}
	if m.RestingCount() != 0 {
		t.Errorf("market order must never rest, resting=%d", m.RestingCount())
	}
	if len(l.executions()) != 1 {
		t.Errorf("expected 1 execution event, got %d", len(l.executions()))
	}
}

func TestPlace_LimitRestsAsPlaced(t *testing.T) {
	m, s, l := newTestMatcher()

	exec, err := m.Place(limitOrder(domain.OrderTypeBuy, "X", "90", 5), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.Order.Status != domain.OrderStatusPlaced || exec.Trade != nil {
		t.Fatalf("expected PLACED with no trade, got %s / %+v", exec.Order.Status, exec.Trade)
	}
	if s.trades.Count() != 0 {
		t.Errorf("expected no trades, got %d", s.trades.Count())
	}
	if m.RestingCount() != 1 {
		t.Errorf("expected 1 resting order, got %d", m.RestingCount())
	}
	if len(l.executions()) != 0 {
		t.Error("limit placement must not emit executions")
	}
}

func TestPlace_UnknownInstrumentStoresNothing(t *testing.T) {
	m, s, _ := newTestMatcher()

	_, err := m.Place(marketOrder(domain.OrderTypeBuy, "NOPE", 1), nil)
	if !errors.Is(err, domain.ErrInstrumentNotFound) {
		t.Fatalf("expected ErrInstrumentNotFound, got %v", err)
	}
	if s.orders.Count() != 0 || s.trades.Count() != 0 {
		t.Fatalf("failed placement left state: orders=%d trades=%d", s.orders.Count(), s.trades.Count())
	}
}

func TestPlace_GuardRejectsWithoutState(t *testing.T) {
	m, s, _ := newTestMatcher()
	reject := errors.New("rejected")

	_, err := m.Place(marketOrder(domain.OrderTypeSell, "X", 1), func(*domain.Order) error { return reject })
	if !errors.Is(err, reject) {
		t.Fatalf("expected guard error, got %v", err)
	}
	if s.orders.Count() != 0 || s.trades.Count() != 0 {
		t.Fatal("guard rejection left state behind")
	}
}

func TestMatch_CrossingRule(t *testing.T) {
	// Instrument X at 100: BUY@105 and SELL@95 execute at 100, BUY@90 waits.
	m, s, _ := newTestMatcher()

	buy105, _ := m.Place(limitOrder(domain.OrderTypeBuy, "X", "105", 1), nil)
	sell95, _ := m.Place(limitOrder(domain.OrderTypeSell, "X", "95", 1), nil)
	buy90, _ := m.Place(limitOrder(domain.OrderTypeBuy, "X", "90", 1), nil)

	execs := m.Match()
	if len(execs) != 2 {
		t.Fatalf("expected 2 executions, got %d", len(execs))
	}
	for _, e := range execs {
		if !e.Trade.ExecutedPrice.Equal(decimal.NewFromInt(100)) {
			t.Errorf("order %s filled at %s, want market price 100", e.Order.OrderID, e.Trade.ExecutedPrice)
		}
	}

	for id, want := range map[string]domain.OrderStatus{
		buy105.Order.OrderID: domain.OrderStatusExecuted,
		sell95.Order.OrderID: domain.OrderStatusExecuted,
		buy90.Order.OrderID:  domain.OrderStatusPlaced,
	} {
		o, _ := s.orders.Get(id)
		if o.Status != want {
			t.Errorf("order %s: got %s, want %s", id, o.Status, want)
		}
	}
	if m.RestingCount() != 1 {
		t.Errorf("expected 1 resting order, got %d", m.RestingCount())
	}
}

func TestMatch_BoundaryEqualPriceCrosses(t *testing.T) {
	m, _, _ := newTestMatcher()
	_, _ = m.Place(limitOrder(domain.OrderTypeBuy, "X", "100", 1), nil)
	_, _ = m.Place(limitOrder(domain.OrderTypeSell, "X", "100", 1), nil)

	if got := len(m.Match()); got != 2 {
		t.Fatalf("expected both orders at the limit to execute, got %d", got)
	}
}

func TestMatch_NeverFillsTwice(t *testing.T) {
	m, s, _ := newTestMatcher()
	_, _ = m.Place(limitOrder(domain.OrderTypeBuy, "X", "105", 1), nil)

	if got := len(m.Match()); got != 1 {
		t.Fatalf("expected 1 execution, got %d", got)
	}
	if got := len(m.Match()); got != 0 {
		t.Fatalf("expected no execution on second pass, got %d", got)
	}
	if s.trades.Count() != 1 {
		t.Fatalf("expected exactly 1 trade, got %d", s.trades.Count())
	}
}

func TestMatch_SkipsStaleBookEntries(t *testing.T) {
	m, s, _ := newTestMatcher()
	exec, _ := m.Place(limitOrder(domain.OrderTypeBuy, "X", "105", 1), nil)

	// Cancel behind the matcher's back; the book entry is now stale.
	o, _ := s.orders.Get(exec.Order.OrderID)
	o.Status = domain.OrderStatusCancelled
	_ = s.orders.Update(o)

	if got := len(m.Match()); got != 0 {
		t.Fatalf("expected stale order to be skipped, got %d executions", got)
	}
	if m.RestingCount() != 0 {
		t.Fatalf("expected stale entry dropped, resting=%d", m.RestingCount())
	}
}

func TestMatch_UnknownInstrumentIsSkipped(t *testing.T) {
	instruments := store.NewInstrumentRegistry([]domain.Instrument{{Symbol: "X", LastTradedPrice: decimal.NewFromInt(100)}})
	orders := store.NewOrderStore()
	trades := store.NewTradeLedger()

	orphan := limitOrder(domain.OrderTypeBuy, "GHOST", "999", 1)
	orphan.OrderID = "orphan"
	orphan.Status = domain.OrderStatusPlaced
	orders.Create(orphan)
	live := limitOrder(domain.OrderTypeBuy, "X", "101", 1)
	live.OrderID = "live"
	live.Status = domain.OrderStatusPlaced
	orders.Create(live)

	m := NewMatcher(instruments, orders, trades, nil, discardLogger())
	if m.RestingCount() != 2 {
		t.Fatalf("expected both PLACED orders loaded onto the book, got %d", m.RestingCount())
	}

	execs := m.Match()
	if len(execs) != 1 || execs[0].Order.OrderID != "live" {
		t.Fatalf("expected only the live order to execute, got %+v", execs)
	}
	o, _ := orders.Get("orphan")
	if o.Status != domain.OrderStatusPlaced {
		t.Fatalf("orphan order should stay PLACED, got %s", o.Status)
	}
}

func TestCancel(t *testing.T) {
	m, s, l := newTestMatcher()
	exec, _ := m.Place(limitOrder(domain.OrderTypeSell, "X", "150", 2), nil)
	id := exec.Order.OrderID

	if _, err := m.Cancel(id, "someone-else"); !errors.Is(err, domain.ErrOrderNotOwned) {
		t.Fatalf("expected ErrOrderNotOwned, got %v", err)
	}

	o, err := m.Cancel(id, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", o.Status)
	}
	if m.RestingCount() != 0 {
		t.Fatal("cancelled order still on the book")
	}

	_, err = m.Cancel(id, "user-1")
	if !errors.Is(err, domain.ErrOrderNotCancellable) {
		t.Fatalf("expected ErrOrderNotCancellable on second cancel, got %v", err)
	}
	if domain.KindOf(err) != domain.KindInvalidState {
		t.Fatalf("expected InvalidState kind, got %s", domain.KindOf(err))
	}

	setPrice(t, s, "X", "200")
	if got := len(m.Match()); got != 0 {
		t.Fatalf("cancelled order must not execute, got %d", got)
	}
	if len(l.cancelled) != 1 {
		t.Fatalf("expected 1 cancel event, got %d", len(l.cancelled))
	}
}

func TestCancel_ExecutedAndMissing(t *testing.T) {
	m, _, _ := newTestMatcher()
	exec, _ := m.Place(marketOrder(domain.OrderTypeBuy, "X", 1), nil)

	if _, err := m.Cancel(exec.Order.OrderID, "user-1"); !errors.Is(err, domain.ErrOrderNotCancellable) {
		t.Fatalf("expected ErrOrderNotCancellable, got %v", err)
	}
	if _, err := m.Cancel("missing", "user-1"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestTick_UpdatesAllPricesThenMatchesOnce(t *testing.T) {
	m, s, l := newTestMatcher(domain.Instrument{Symbol: "Y", LastTradedPrice: decimal.NewFromInt(50)})
	_, _ = m.Place(limitOrder(domain.OrderTypeBuy, "X", "90", 1), nil)
	_, _ = m.Place(limitOrder(domain.OrderTypeSell, "Y", "60", 1), nil)

	res := m.Tick(func(in domain.Instrument) decimal.Decimal {
		if in.Symbol == "X" {
			return decimal.RequireFromString("89.994")
		}
		return decimal.NewFromInt(61)
	})

	if len(res.Changes) != 2 {
		t.Fatalf("expected 2 price changes, got %d", len(res.Changes))
	}
	if !res.Changes[0].NewPrice.Equal(domain.MustPrice("89.99")) {
		t.Errorf("expected rounded price 89.99, got %s", res.Changes[0].NewPrice)
	}
	if len(res.Executions) != 2 {
		t.Fatalf("expected both orders to execute, got %d", len(res.Executions))
	}
	x, _ := s.instruments.Get("X")
	if !x.LastTradedPrice.Equal(domain.MustPrice("89.99")) || !x.UpdatedAt.Equal(res.At) {
		t.Errorf("registry not updated: %+v", x)
	}
	if len(l.prices) != 1 {
		t.Errorf("expected one PricesUpdated event per tick, got %d", len(l.prices))
	}
}

func TestTick_SkipsNonPositivePrice(t *testing.T) {
	m, s, _ := newTestMatcher()

	res := m.Tick(func(domain.Instrument) decimal.Decimal { return decimal.Zero })
	if len(res.Changes) != 0 {
		t.Fatalf("expected no changes, got %d", len(res.Changes))
	}
	x, _ := s.instruments.Get("X")
	if !x.LastTradedPrice.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("price should be unchanged, got %s", x.LastTradedPrice)
	}
}

func TestDepth(t *testing.T) {
	m, _, _ := newTestMatcher()
	_, _ = m.Place(limitOrder(domain.OrderTypeBuy, "X", "90", 3), nil)
	_, _ = m.Place(limitOrder(domain.OrderTypeBuy, "X", "90", 2), nil)
	_, _ = m.Place(limitOrder(domain.OrderTypeSell, "X", "110", 1), nil)

	d, err := m.Depth("X", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.Bids) != 1 || d.Bids[0].TotalQuantity != 5 || d.Bids[0].OrderCount != 2 {
		t.Errorf("unexpected bids: %+v", d.Bids)
	}
	if len(d.Asks) != 1 || !d.Asks[0].Price.Equal(decimal.NewFromInt(110)) {
		t.Errorf("unexpected asks: %+v", d.Asks)
	}
	if d.BidOrders != 2 || d.AskOrders != 1 {
		t.Errorf("expected 2 resting bids and 1 ask, got %d and %d", d.BidOrders, d.AskOrders)
	}
	if _, err := m.Depth("NOPE", 10); !errors.Is(err, domain.ErrInstrumentNotFound) {
		t.Errorf("expected ErrInstrumentNotFound, got %v", err)
	}
}

func TestMatcher_ConcurrentPlaceAndTick(t *testing.T) {
	m, s, _ := newTestMatcher()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			_, _ = m.Place(limitOrder(domain.OrderTypeBuy, "X", "100", 1), nil)
		}()
		go func() {
			defer wg.Done()
			_, _ = m.Place(marketOrder(domain.OrderTypeSell, "X", 1), nil)
		}()
		go func() {
			defer wg.Done()
			m.Tick(func(in domain.Instrument) decimal.Decimal { return in.LastTradedPrice })
		}()
	}
	wg.Wait()
	m.Match()

	if s.trades.Count() != s.orders.Count() {
		t.Fatalf("every order should have exactly one trade: orders=%d trades=%d", s.orders.Count(), s.trades.Count())
	}
}
