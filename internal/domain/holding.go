package domain

import "github.com/shopspring/decimal"

// Holding is a user's derived net position in one symbol.
type Holding struct {
	Symbol       string
	Quantity     int64
	AveragePrice decimal.Decimal
	CurrentValue decimal.Decimal
}

// InvestedValue returns quantity × average price.
func (h Holding) InvestedValue() decimal.Decimal {
	return h.AveragePrice.Mul(decimal.NewFromInt(h.Quantity))
}

// PortfolioSummary aggregates a user's holdings.
type PortfolioSummary struct {
	TotalHoldings             int
	TotalInvestedValue        decimal.Decimal
	TotalCurrentValue         decimal.Decimal
	TotalProfitLoss           decimal.Decimal
	TotalProfitLossPercentage decimal.Decimal
	Holdings                  []Holding
}

// TradeStats counts a user's executions.
type TradeStats struct {
	TotalTrades     int
	TotalBuyTrades  int
	TotalSellTrades int
	TotalVolume     decimal.Decimal
}
