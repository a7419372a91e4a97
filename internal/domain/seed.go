package domain

// DefaultInstruments returns the fixed universe loaded at startup.
func DefaultInstruments() []Instrument {
	nse := []struct {
		symbol string
		price  string
	}{
		{"RELIANCE", "2450.75"},
		{"TCS", "3680.50"},
		{"INFY", "1520.30"},
		{"HDFCBANK", "1645.20"},
		{"ICICIBANK", "1089.45"},
		{"WIPRO", "445.60"},
		{"BHARTIARTL", "1275.80"},
		{"ITC", "425.90"},
		{"SBIN", "625.35"},
		{"LT", "3456.70"},
	}
	bse := []struct {
		symbol string
		price  string
	}{
		{"TATAMOTORS", "785.25"},
		{"MARUTI", "10250.40"},
		{"BAJFINANCE", "6890.15"},
		{"ASIANPAINT", "2875.60"},
		{"SUNPHARMA", "1456.80"},
	}

	out := make([]Instrument, 0, len(nse)+len(bse))
	for _, s := range nse {
		out = append(out, Instrument{
			Symbol:          s.symbol,
			Exchange:        ExchangeNSE,
			Type:            InstrumentTypeEquity,
			LastTradedPrice: MustPrice(s.price),
		})
	}
	for _, s := range bse {
		out = append(out, Instrument{
			Symbol:          s.symbol,
			Exchange:        ExchangeBSE,
			Type:            InstrumentTypeEquity,
			LastTradedPrice: MustPrice(s.price),
		})
	}
	return out
}
