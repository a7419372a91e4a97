package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRound2(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2450.75", "2450.75"},
		{"24507.5", "24507.5"},
		{"1.005", "1.01"},
		{"1.004", "1"},
		{"-1.005", "-1.01"},
		{"2462.9037", "2462.9"},
	}
	for _, tt := range tests {
		got := Round2(decimal.RequireFromString(tt.in))
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("Round2(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
