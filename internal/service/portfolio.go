package service

import (
	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/store"
)

// PriceLookup returns the current price of a symbol, or false if unknown.
type PriceLookup func(symbol string) (decimal.Decimal, bool)

// position is the running state of one symbol while folding trades.
// invested is the cost basis of the long quantity only.
type position struct {
	qty      int64
	invested decimal.Decimal
}

// Position is the signed net position of one symbol before filtering.
type Position struct {
	Symbol   string
	Quantity int64
	Invested decimal.Decimal
}

// FoldPositions replays trades in the given order and returns the net
// position of every traded symbol in order of first appearance.
//
// A SELL realizes cost at the running average for the part covered by long
// inventory; any excess opens a short carrying no cost basis. A BUY while
// short first covers the short, and only the remainder adds cost basis.
func FoldPositions(trades []*domain.Trade) []Position {
	positions := make(map[string]*position)
	var symbols []string

	for _, t := range trades {
		p, ok := positions[t.Symbol]
		if !ok {
			p = &position{invested: decimal.Zero}
			positions[t.Symbol] = p
			symbols = append(symbols, t.Symbol)
		}

		q := t.Quantity
		switch t.Type {
		case domain.OrderTypeBuy:
			if p.qty < 0 {
				cover := min(q, -p.qty)
				p.qty += cover
				q -= cover
			}
			p.qty += q
			p.invested = p.invested.Add(t.ExecutedPrice.Mul(decimal.NewFromInt(q)))
		case domain.OrderTypeSell:
			if p.qty > 0 {
				closed := min(q, p.qty)
				if closed == p.qty {
					p.invested = decimal.Zero
				} else {
					// invested × closed / qty is the cost at the running average.
					p.invested = p.invested.Sub(p.invested.Mul(decimal.NewFromInt(closed)).Div(decimal.NewFromInt(p.qty)))
				}
				p.qty -= closed
				q -= closed
			}
			p.qty -= q
		}
	}

	out := make([]Position, 0, len(symbols))
	for _, s := range symbols {
		p := positions[s]
		out = append(out, Position{Symbol: s, Quantity: p.qty, Invested: p.invested})
	}
	return out
}

// FoldHoldings turns trades into holdings for every symbol with a positive
// net quantity. Current value falls back to the average price when the
// symbol has no current price.
func FoldHoldings(trades []*domain.Trade, price PriceLookup) []domain.Holding {
	holdings := []domain.Holding{}
	for _, p := range FoldPositions(trades) {
		if p.Quantity <= 0 {
			continue
		}
		qty := decimal.NewFromInt(p.Quantity)
		avg := domain.Round2(p.Invested.Div(qty))
		current, ok := price(p.Symbol)
		if !ok {
			current = avg
		}
		holdings = append(holdings, domain.Holding{
			Symbol:       p.Symbol,
			Quantity:     p.Quantity,
			AveragePrice: avg,
			CurrentValue: domain.Round2(current.Mul(qty)),
		})
	}
	return holdings
}

// Summarize totals holdings. The P&L percentage is 0 when nothing is invested.
func Summarize(holdings []domain.Holding) domain.PortfolioSummary {
	invested := decimal.Zero
	current := decimal.Zero
	for _, h := range holdings {
		invested = invested.Add(h.InvestedValue())
		current = current.Add(h.CurrentValue)
	}
	invested = domain.Round2(invested)
	current = domain.Round2(current)
	pnl := current.Sub(invested)

	pct := decimal.Zero
	if !invested.IsZero() {
		pct = domain.Round2(pnl.Div(invested).Mul(decimal.NewFromInt(100)))
	}
	return domain.PortfolioSummary{
		TotalHoldings:             len(holdings),
		TotalInvestedValue:        invested,
		TotalCurrentValue:         current,
		TotalProfitLoss:           pnl,
		TotalProfitLossPercentage: pct,
		Holdings:                  holdings,
	}
}

// PortfolioService derives holdings from the trade ledger on every read.
type PortfolioService struct {
	trades      store.TradeRepository
	instruments store.InstrumentRepository
}

// NewPortfolioService creates a new PortfolioService.
func NewPortfolioService(trades store.TradeRepository, instruments store.InstrumentRepository) *PortfolioService {
	return &PortfolioService{trades: trades, instruments: instruments}
}

// GetUserPortfolio returns the user's open long holdings.
func (s *PortfolioService) GetUserPortfolio(userID string) []domain.Holding {
	return FoldHoldings(s.trades.ListByUser(userID), s.lastPrice)
}

// GetPortfolioSummary returns the user's holdings with totals and P&L.
func (s *PortfolioService) GetPortfolioSummary(userID string) domain.PortfolioSummary {
	return Summarize(s.GetUserPortfolio(userID))
}

// GetHolding returns the user's holding in symbol. It returns
// domain.ErrInstrumentNotFound for unknown symbols and
// domain.ErrHoldingNotFound when the user holds none.
func (s *PortfolioService) GetHolding(userID, symbol string) (domain.Holding, error) {
	if !s.instruments.Exists(symbol) {
		return domain.Holding{}, domain.ErrInstrumentNotFound
	}
	for _, h := range s.GetUserPortfolio(userID) {
		if h.Symbol == symbol {
			return h, nil
		}
	}
	return domain.Holding{}, domain.ErrHoldingNotFound
}

func (s *PortfolioService) lastPrice(symbol string) (decimal.Decimal, bool) {
	in, err := s.instruments.Get(symbol)
	if err != nil {
		return decimal.Zero, false
	}
	return in.LastTradedPrice, true
}
