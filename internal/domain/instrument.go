package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Exchange is the venue an instrument is listed on.
type Exchange string

const (
	ExchangeNSE Exchange = "NSE"
	ExchangeBSE Exchange = "BSE"
)

// InstrumentType classifies a tradable instrument.
type InstrumentType string

const (
	InstrumentTypeEquity    InstrumentType = "EQUITY"
	InstrumentTypeFutures   InstrumentType = "FUTURES"
	InstrumentTypeOptions   InstrumentType = "OPTIONS"
	InstrumentTypeCommodity InstrumentType = "COMMODITY"
)

// Instrument is a tradable symbol and its last traded price. The price is
// the only mutable field and is only written by the price simulator.
type Instrument struct {
	Symbol          string
	Exchange        Exchange
	Type            InstrumentType
	LastTradedPrice decimal.Decimal
	UpdatedAt       time.Time
}

// PriceChange records a single instrument's move during one simulation tick.
type PriceChange struct {
	Symbol   string
	OldPrice decimal.Decimal
	NewPrice decimal.Decimal
	At       time.Time
}

// ChangePercent returns the relative move in percent, rounded to 2 places.
func (c PriceChange) ChangePercent() decimal.Decimal {
	if c.OldPrice.IsZero() {
		return decimal.Zero
	}
	return Round2(c.NewPrice.Sub(c.OldPrice).Div(c.OldPrice).Mul(decimal.NewFromInt(100)))
}
