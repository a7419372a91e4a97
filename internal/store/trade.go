package store

import (
	"sort"
	"sync"

	"github.com/efreitasn/papertrade/internal/domain"
)

// TradeLedger is a thread-safe, append-only in-memory ledger of trades
// with secondary indexes by user and by order.
type TradeLedger struct {
	mu      sync.RWMutex
	trades  []*domain.Trade
	byUser  map[string][]*domain.Trade
	byOrder map[string][]*domain.Trade
}

// NewTradeLedger creates an empty TradeLedger.
func NewTradeLedger() *TradeLedger {
	return &TradeLedger{
		byUser:  make(map[string][]*domain.Trade),
		byOrder: make(map[string][]*domain.Trade),
	}
}

// Append records a trade. An order produces at most one trade, so a second
// trade for the same order is rejected with domain.ErrDuplicateTrade.
func (l *TradeLedger) Append(t *domain.Trade) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.byOrder[t.OrderID]) > 0 {
		return domain.ErrDuplicateTrade
	}
	c := *t
	l.trades = append(l.trades, &c)
	l.byUser[c.UserID] = append(l.byUser[c.UserID], &c)
	l.byOrder[c.OrderID] = append(l.byOrder[c.OrderID], &c)
	return nil
}

// ListByUser returns a user's trades in chronological order. Trades with
// equal timestamps keep their append order.
// Returns an empty slice if the user has no trades.
func (l *TradeLedger) ListByUser(userID string) []*domain.Trade {
	l.mu.RLock()
	out := copyTrades(l.byUser[userID])
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExecutedAt.Before(out[j].ExecutedAt)
	})
	return out
}

// ListByOrder returns the trades produced by an order.
func (l *TradeLedger) ListByOrder(orderID string) []*domain.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return copyTrades(l.byOrder[orderID])
}

// Count returns the number of trades recorded.
func (l *TradeLedger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.trades)
}

// copyTrades returns value copies so callers cannot mutate the ledger.
func copyTrades(src []*domain.Trade) []*domain.Trade {
	out := make([]*domain.Trade, len(src))
	for i, t := range src {
		c := *t
		out[i] = &c
	}
	return out
}
