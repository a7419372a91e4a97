package store

import (
	"sync"

	"github.com/efreitasn/papertrade/internal/domain"
)

// OrderStore is a thread-safe in-memory store for orders,
// with a primary index by order_id and a secondary index by user_id.
// Stored orders are private copies; reads return fresh clones.
type OrderStore struct {
	mu         sync.RWMutex
	orders     map[string]*domain.Order
	sequence   []string            // insertion order
	userOrders map[string][]string // user_id → order ids (append-only)
}

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:     make(map[string]*domain.Order),
		userOrders: make(map[string][]string),
	}
}

// Create adds an order to the store and appends it to the
// user's secondary index.
func (s *OrderStore) Create(o *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.OrderID]; !exists {
		s.sequence = append(s.sequence, o.OrderID)
		s.userOrders[o.UserID] = append(s.userOrders[o.UserID], o.OrderID)
	}
	s.orders[o.OrderID] = o.Clone()
}

// Get retrieves an order by ID. It returns
// domain.ErrOrderNotFound if the order does not exist.
func (s *OrderStore) Get(id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o.Clone(), nil
}

// Update replaces a stored order in full. It returns
// domain.ErrOrderNotFound if the order was never created.
func (s *OrderStore) Update(o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[o.OrderID]; !ok {
		return domain.ErrOrderNotFound
	}
	s.orders[o.OrderID] = o.Clone()
	return nil
}

// ListByUser returns a user's orders in insertion order. If status is
// non-nil, only orders matching that status are included.
func (s *OrderStore) ListByUser(userID string, status *domain.OrderStatus) []*domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(s.userOrders[userID], status)
}

// ListByStatus returns every order with the given status in insertion order.
func (s *OrderStore) ListByStatus(status domain.OrderStatus) []*domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(s.sequence, &status)
}

// Count returns the number of stored orders.
func (s *OrderStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sequence)
}

// collect must be called with s.mu held.
func (s *OrderStore) collect(ids []string, status *domain.OrderStatus) []*domain.Order {
	out := make([]*domain.Order, 0, len(ids))
	for _, id := range ids {
		o := s.orders[id]
		if status != nil && o.Status != *status {
			continue
		}
		out = append(out, o.Clone())
	}
	return out
}
