package domain

import "github.com/shopspring/decimal"

// PricePlaces is the number of decimal places every price carries.
const PricePlaces = 2

// Round2 rounds d to 2 decimal places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(PricePlaces)
}

// MustPrice parses a decimal literal and panics on malformed input.
// Only used for compile-time constants such as seed data.
func MustPrice(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
