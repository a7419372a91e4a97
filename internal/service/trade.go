package service

import (
	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/store"
)

// TradeService exposes a user's execution history.
type TradeService struct {
	trades store.TradeRepository
	orders store.OrderRepository
}

// NewTradeService creates a new TradeService.
func NewTradeService(trades store.TradeRepository, orders store.OrderRepository) *TradeService {
	return &TradeService{trades: trades, orders: orders}
}

// ListUserTrades returns the user's trades in chronological order.
func (s *TradeService) ListUserTrades(userID string) []*domain.Trade {
	return s.trades.ListByUser(userID)
}

// ListOrderTrades returns the trades of one order. It returns
// domain.ErrOrderNotFound for unknown orders.
func (s *TradeService) ListOrderTrades(orderID string) ([]*domain.Trade, error) {
	if _, err := s.orders.Get(orderID); err != nil {
		return nil, err
	}
	return s.trades.ListByOrder(orderID), nil
}

// GetTradeStats counts the user's trades and sums their value.
func (s *TradeService) GetTradeStats(userID string) domain.TradeStats {
	return ComputeTradeStats(s.trades.ListByUser(userID))
}

// ComputeTradeStats summarizes trades. Volume is the sum of quantity ×
// executed price rounded to 2 decimals.
func ComputeTradeStats(trades []*domain.Trade) domain.TradeStats {
	stats := domain.TradeStats{TotalVolume: decimal.Zero}
	for _, t := range trades {
		stats.TotalTrades++
		if t.Type == domain.OrderTypeBuy {
			stats.TotalBuyTrades++
		} else {
			stats.TotalSellTrades++
		}
		stats.TotalVolume = stats.TotalVolume.Add(t.Value())
	}
	stats.TotalVolume = domain.Round2(stats.TotalVolume)
	return stats
}
