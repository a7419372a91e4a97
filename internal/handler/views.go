package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/service"
)

// Response views. Field names are camelCase on the wire; nullable fields
// use pointers and are always present.

type instrumentView struct {
	Symbol          string          `json:"symbol"`
	Exchange        string          `json:"exchange"`
	InstrumentType  string          `json:"instrumentType"`
	LastTradedPrice decimal.Decimal `json:"lastTradedPrice"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func newInstrumentView(in domain.Instrument) instrumentView {
	return instrumentView{
		Symbol:          in.Symbol,
		Exchange:        string(in.Exchange),
		InstrumentType:  string(in.Type),
		LastTradedPrice: in.LastTradedPrice,
		UpdatedAt:       in.UpdatedAt.UTC(),
	}
}

type orderView struct {
	OrderID    string           `json:"orderId"`
	UserID     string           `json:"userId"`
	Symbol     string           `json:"symbol"`
	OrderType  string           `json:"orderType"`
	OrderStyle string           `json:"orderStyle"`
	Quantity   int64            `json:"quantity"`
	Price      *decimal.Decimal `json:"price"`
	Status     string           `json:"status"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

func newOrderView(o *domain.Order) orderView {
	return orderView{
		OrderID:    o.OrderID,
		UserID:     o.UserID,
		Symbol:     o.Symbol,
		OrderType:  string(o.Type),
		OrderStyle: string(o.Style),
		Quantity:   o.Quantity,
		Price:      o.Price,
		Status:     string(o.Status),
		CreatedAt:  o.CreatedAt.UTC(),
		UpdatedAt:  o.UpdatedAt.UTC(),
	}
}

func newOrderViews(orders []*domain.Order) []orderView {
	out := make([]orderView, len(orders))
	for i, o := range orders {
		out[i] = newOrderView(o)
	}
	return out
}

type tradeView struct {
	TradeID       string          `json:"tradeId"`
	OrderID       string          `json:"orderId"`
	UserID        string          `json:"userId"`
	Symbol        string          `json:"symbol"`
	OrderType     string          `json:"orderType"`
	Quantity      int64           `json:"quantity"`
	ExecutedPrice decimal.Decimal `json:"executedPrice"`
	TotalValue    decimal.Decimal `json:"totalValue"`
	ExecutedAt    time.Time       `json:"executedAt"`
}

func newTradeView(t *domain.Trade) tradeView {
	return tradeView{
		TradeID:       t.TradeID,
		OrderID:       t.OrderID,
		UserID:        t.UserID,
		Symbol:        t.Symbol,
		OrderType:     string(t.Type),
		Quantity:      t.Quantity,
		ExecutedPrice: t.ExecutedPrice,
		TotalValue:    domain.Round2(t.Value()),
		ExecutedAt:    t.ExecutedAt.UTC(),
	}
}

func newTradeViews(trades []*domain.Trade) []tradeView {
	out := make([]tradeView, len(trades))
	for i, t := range trades {
		out[i] = newTradeView(t)
	}
	return out
}

// executionView is an order together with the trade that executed it.
// Trade is null while the order rests.
type executionView struct {
	Order orderView  `json:"order"`
	Trade *tradeView `json:"trade"`
}

func newExecutionView(o *domain.Order, t *domain.Trade) executionView {
	v := executionView{Order: newOrderView(o)}
	if t != nil {
		tv := newTradeView(t)
		v.Trade = &tv
	}
	return v
}

type holdingView struct {
	Symbol        string          `json:"symbol"`
	Quantity      int64           `json:"quantity"`
	AveragePrice  decimal.Decimal `json:"averagePrice"`
	InvestedValue decimal.Decimal `json:"investedValue"`
	CurrentValue  decimal.Decimal `json:"currentValue"`
	ProfitLoss    decimal.Decimal `json:"profitLoss"`
}

func newHoldingView(h domain.Holding) holdingView {
	invested := domain.Round2(h.InvestedValue())
	return holdingView{
		Symbol:        h.Symbol,
		Quantity:      h.Quantity,
		AveragePrice:  h.AveragePrice,
		InvestedValue: invested,
		CurrentValue:  h.CurrentValue,
		ProfitLoss:    h.CurrentValue.Sub(invested),
	}
}

func newHoldingViews(holdings []domain.Holding) []holdingView {
	out := make([]holdingView, len(holdings))
	for i, h := range holdings {
		out[i] = newHoldingView(h)
	}
	return out
}

type summaryView struct {
	TotalHoldings             int             `json:"totalHoldings"`
	TotalInvestedValue        decimal.Decimal `json:"totalInvestedValue"`
	TotalCurrentValue         decimal.Decimal `json:"totalCurrentValue"`
	TotalProfitLoss           decimal.Decimal `json:"totalProfitLoss"`
	TotalProfitLossPercentage decimal.Decimal `json:"totalProfitLossPercentage"`
	Holdings                  []holdingView   `json:"holdings"`
}

func newSummaryView(s domain.PortfolioSummary) summaryView {
	return summaryView{
		TotalHoldings:             s.TotalHoldings,
		TotalInvestedValue:        s.TotalInvestedValue,
		TotalCurrentValue:         s.TotalCurrentValue,
		TotalProfitLoss:           s.TotalProfitLoss,
		TotalProfitLossPercentage: s.TotalProfitLossPercentage,
		Holdings:                  newHoldingViews(s.Holdings),
	}
}

type tradeStatsView struct {
	TotalTrades     int             `json:"totalTrades"`
	TotalBuyTrades  int             `json:"totalBuyTrades"`
	TotalSellTrades int             `json:"totalSellTrades"`
	TotalVolume     decimal.Decimal `json:"totalVolume"`
}

func newTradeStatsView(s domain.TradeStats) tradeStatsView {
	return tradeStatsView{
		TotalTrades:     s.TotalTrades,
		TotalBuyTrades:  s.TotalBuyTrades,
		TotalSellTrades: s.TotalSellTrades,
		TotalVolume:     s.TotalVolume,
	}
}

type priceLevelView struct {
	Price         decimal.Decimal `json:"price"`
	TotalQuantity int64           `json:"totalQuantity"`
	OrderCount    int             `json:"orderCount"`
}

type depthView struct {
	Symbol    string           `json:"symbol"`
	Bids      []priceLevelView `json:"bids"`
	Asks      []priceLevelView `json:"asks"`
	BidOrders int              `json:"bidOrders"`
	AskOrders int              `json:"askOrders"`
}

func newDepthView(d engine.Depth) depthView {
	levels := func(in []engine.PriceLevel) []priceLevelView {
		out := make([]priceLevelView, len(in))
		for i, l := range in {
			out[i] = priceLevelView{Price: l.Price, TotalQuantity: l.TotalQuantity, OrderCount: l.OrderCount}
		}
		return out
	}
	return depthView{
		Symbol:    d.Symbol,
		Bids:      levels(d.Bids),
		Asks:      levels(d.Asks),
		BidOrders: d.BidOrders,
		AskOrders: d.AskOrders,
	}
}

type priceChangeView struct {
	Symbol        string          `json:"symbol"`
	OldPrice      decimal.Decimal `json:"oldPrice"`
	NewPrice      decimal.Decimal `json:"newPrice"`
	ChangePercent decimal.Decimal `json:"changePercent"`
}

func newPriceChangeViews(changes []domain.PriceChange) []priceChangeView {
	out := make([]priceChangeView, len(changes))
	for i, c := range changes {
		out[i] = priceChangeView{
			Symbol:        c.Symbol,
			OldPrice:      c.OldPrice,
			NewPrice:      c.NewPrice,
			ChangePercent: c.ChangePercent(),
		}
	}
	return out
}

type tickView struct {
	At         time.Time         `json:"at"`
	Changes    []priceChangeView `json:"changes"`
	Executions []executionView   `json:"executions"`
}

func newTickView(r engine.TickResult) tickView {
	execs := make([]executionView, len(r.Executions))
	for i, e := range r.Executions {
		execs[i] = newExecutionView(e.Order, e.Trade)
	}
	return tickView{At: r.At.UTC(), Changes: newPriceChangeViews(r.Changes), Executions: execs}
}

type simulationView struct {
	Running       bool       `json:"running"`
	Interval      string     `json:"interval"`
	Volatility    float64    `json:"volatility"`
	Ticks         int64      `json:"ticks"`
	LastTickAt    *time.Time `json:"lastTickAt"`
	RestingOrders int        `json:"restingOrders"`
}

func newSimulationView(s service.SimulationStatus) simulationView {
	return simulationView{
		Running:       s.Running,
		Interval:      s.Interval.String(),
		Volatility:    s.Volatility,
		Ticks:         s.Ticks,
		LastTickAt:    s.LastTickAt,
		RestingOrders: s.RestingOrders,
	}
}
