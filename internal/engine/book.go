package engine

import (
	"sort"
	"time"

	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
)

// BookEntry is a single PLACED limit order resting on the book.
type BookEntry struct {
	Limit     decimal.Decimal
	CreatedAt time.Time
	OrderID   string
	Quantity  int64
}

// PriceLevel aggregates resting orders sharing a limit price.
type PriceLevel struct {
	Price         decimal.Decimal
	TotalQuantity int64
	OrderCount    int
}

// Depth is an aggregated view of the resting limit orders of one symbol.
type Depth struct {
	Symbol    string
	Bids      []PriceLevel
	Asks      []PriceLevel
	BidOrders int
	AskOrders int
}

// bidLess orders resting BUY orders by limit descending, then created_at
// ascending, then order_id ascending. Min() is the bid that crosses first
// when the market falls.
func bidLess(a, b BookEntry) bool {
	if c := a.Limit.Cmp(b.Limit); c != 0 {
		return c > 0
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.OrderID < b.OrderID
}

// askLess orders resting SELL orders by limit ascending, then created_at
// ascending, then order_id ascending. Min() is the ask that crosses first
// when the market rises.
func askLess(a, b BookEntry) bool {
	if c := a.Limit.Cmp(b.Limit); c != 0 {
		return c < 0
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.OrderID < b.OrderID
}

// OrderBook indexes the resting limit orders of a single symbol by trigger
// price so a tick only visits orders it actually crosses. It is not safe for
// concurrent use; the Matcher serializes access.
type OrderBook struct {
	symbol string
	bids   *btree.BTreeG[BookEntry]
	asks   *btree.BTreeG[BookEntry]
	index  map[string]BookEntry // order_id → entry
}

// NewOrderBook creates an empty book for the given symbol.
func NewOrderBook(symbol string) *OrderBook {
	const degree = 32
	return &OrderBook{
		symbol: symbol,
		bids:   btree.NewG[BookEntry](degree, bidLess),
		asks:   btree.NewG[BookEntry](degree, askLess),
		index:  make(map[string]BookEntry),
	}
}

// Insert rests a PLACED limit order on the side matching its type.
// Orders without a limit price are ignored.
func (ob *OrderBook) Insert(o *domain.Order) {
	if o.Price == nil {
		return
	}
	entry := BookEntry{
		Limit:     *o.Price,
		CreatedAt: o.CreatedAt,
		OrderID:   o.OrderID,
		Quantity:  o.Quantity,
	}
	ob.Remove(o.OrderID)
	if o.Type == domain.OrderTypeBuy {
		ob.bids.ReplaceOrInsert(entry)
	} else {
		ob.asks.ReplaceOrInsert(entry)
	}
	ob.index[o.OrderID] = entry
}

// Remove deletes an order from the book by order ID using the
// secondary index. Unknown IDs are a no-op.
func (ob *OrderBook) Remove(orderID string) {
	entry, ok := ob.index[orderID]
	if !ok {
		return
	}
	delete(ob.index, orderID)
	// Delete is a no-op on the side the entry isn't on.
	ob.bids.Delete(entry)
	ob.asks.Delete(entry)
}

// Crossed returns every resting order eligible to execute at market:
// bids with limit >= market and asks with limit <= market. The result is
// ordered by created_at, then order_id.
func (ob *OrderBook) Crossed(market decimal.Decimal) []BookEntry {
	var out []BookEntry
	ob.bids.Ascend(func(e BookEntry) bool {
		if e.Limit.LessThan(market) {
			return false
		}
		out = append(out, e)
		return true
	})
	ob.asks.Ascend(func(e BookEntry) bool {
		if e.Limit.GreaterThan(market) {
			return false
		}
		out = append(out, e)
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].OrderID < out[j].OrderID
	})
	return out
}

// TopBids returns up to n aggregated price levels from the bid side,
// ordered by price descending.
func (ob *OrderBook) TopBids(n int) []PriceLevel {
	return topLevels(ob.bids, n)
}

// TopAsks returns up to n aggregated price levels from the ask side,
// ordered by price ascending.
func (ob *OrderBook) TopAsks(n int) []PriceLevel {
	return topLevels(ob.asks, n)
}

// topLevels iterates the B-tree in order and aggregates entries into
// at most n price levels.
func topLevels(tree *btree.BTreeG[BookEntry], n int) []PriceLevel {
	if n <= 0 {
		return []PriceLevel{}
	}
	levels := make([]PriceLevel, 0, n)
	tree.Ascend(func(entry BookEntry) bool {
		if len(levels) > 0 && levels[len(levels)-1].Price.Equal(entry.Limit) {
			levels[len(levels)-1].TotalQuantity += entry.Quantity
			levels[len(levels)-1].OrderCount++
			return true
		}
		if len(levels) >= n {
			return false
		}
		levels = append(levels, PriceLevel{
			Price:         entry.Limit,
			TotalQuantity: entry.Quantity,
			OrderCount:    1,
		})
		return true
	})
	return levels
}

// BidCount returns the number of resting BUY orders.
func (ob *OrderBook) BidCount() int {
	return ob.bids.Len()
}

// AskCount returns the number of resting SELL orders.
func (ob *OrderBook) AskCount() int {
	return ob.asks.Len()
}

// Len returns the number of resting orders on both sides.
func (ob *OrderBook) Len() int {
	return len(ob.index)
}

// BookManager maps symbol → OrderBook. Like OrderBook it relies on the
// Matcher for synchronization.
type BookManager struct {
	books map[string]*OrderBook
}

// NewBookManager creates an empty BookManager.
func NewBookManager() *BookManager {
	return &BookManager{
		books: make(map[string]*OrderBook),
	}
}

// GetOrCreate returns the order book for the given symbol, creating
// one if it doesn't already exist.
func (bm *BookManager) GetOrCreate(symbol string) *OrderBook {
	book, ok := bm.books[symbol]
	if !ok {
		book = NewOrderBook(symbol)
		bm.books[symbol] = book
	}
	return book
}

// Get returns the book for symbol, if any.
func (bm *BookManager) Get(symbol string) (*OrderBook, bool) {
	book, ok := bm.books[symbol]
	return book, ok
}

// Symbols returns the symbols that currently have resting orders, sorted.
func (bm *BookManager) Symbols() []string {
	out := make([]string, 0, len(bm.books))
	for s, b := range bm.books {
		if b.Len() > 0 {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the total number of resting orders across all books.
func (bm *BookManager) Len() int {
	n := 0
	for _, b := range bm.books {
		n += b.Len()
	}
	return n
}
