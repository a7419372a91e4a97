package store

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
)

// InstrumentRegistry is a thread-safe in-memory registry of instruments,
// keyed by symbol. Listing preserves seed order.
type InstrumentRegistry struct {
	mu          sync.RWMutex
	instruments map[string]*domain.Instrument
	symbols     []string
}

// NewInstrumentRegistry creates a registry holding the given instruments.
// Later duplicates of a symbol replace earlier ones.
func NewInstrumentRegistry(seed []domain.Instrument) *InstrumentRegistry {
	r := &InstrumentRegistry{
		instruments: make(map[string]*domain.Instrument, len(seed)),
		symbols:     make([]string, 0, len(seed)),
	}
	for i := range seed {
		in := seed[i]
		if _, exists := r.instruments[in.Symbol]; !exists {
			r.symbols = append(r.symbols, in.Symbol)
		}
		r.instruments[in.Symbol] = &in
	}
	return r
}

// List returns all instruments in seed order.
func (r *InstrumentRegistry) List() []domain.Instrument {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Instrument, 0, len(r.symbols))
	for _, s := range r.symbols {
		out = append(out, *r.instruments[s])
	}
	return out
}

// Get retrieves an instrument by symbol. It returns
// domain.ErrInstrumentNotFound if the symbol is unknown.
func (r *InstrumentRegistry) Get(symbol string) (domain.Instrument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	in, ok := r.instruments[symbol]
	if !ok {
		return domain.Instrument{}, domain.ErrInstrumentNotFound
	}
	return *in, nil
}

// Exists returns true if the symbol is known.
func (r *InstrumentRegistry) Exists(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.instruments[symbol]
	return ok
}

// UpdatePrice sets the last traded price of a symbol.
func (r *InstrumentRegistry) UpdatePrice(symbol string, price decimal.Decimal, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	in, ok := r.instruments[symbol]
	if !ok {
		return domain.ErrInstrumentNotFound
	}
	in.LastTradedPrice = price
	in.UpdatedAt = at
	return nil
}

// Count returns the number of instruments.
func (r *InstrumentRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.symbols)
}
