package service

import (
	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/store"
)

// DefaultDepthLevels is the number of book levels returned when the caller
// does not ask for a specific depth.
const DefaultDepthLevels = 10

// InstrumentService handles instrument lookups and resting-order depth.
type InstrumentService struct {
	instruments store.InstrumentRepository
	matcher     *engine.Matcher
}

// NewInstrumentService creates a new InstrumentService.
func NewInstrumentService(instruments store.InstrumentRepository, matcher *engine.Matcher) *InstrumentService {
	return &InstrumentService{instruments: instruments, matcher: matcher}
}

// List returns every instrument in seed order.
func (s *InstrumentService) List() []domain.Instrument {
	return s.instruments.List()
}

// Get returns one instrument or domain.ErrInstrumentNotFound.
func (s *InstrumentService) Get(symbol string) (domain.Instrument, error) {
	return s.instruments.Get(symbol)
}

// Depth returns the aggregated resting LIMIT orders for symbol. levels <= 0
// selects DefaultDepthLevels.
func (s *InstrumentService) Depth(symbol string, levels int) (engine.Depth, error) {
	if levels <= 0 {
		levels = DefaultDepthLevels
	}
	return s.matcher.Depth(symbol, levels)
}
