package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNewMoneyFromString(t *testing.T) {
	tests := []struct {
		name        string
		amount      string
		currency    string
		expectError bool
	}{
		{"ValidAmount", "100.50", "CHF", false},
		{"Integer", "7", "EUR", false},
		{"Negative", "-3.20", "CHF", false},
		{"Invalid", "invalid", "CHF", true},
		{"Empty", "", "CHF", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			money, err := NewMoneyFromString(tt.amount, tt.currency)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.currency, money.Currency)
				// Decimal normalizes trailing zeros, so compare values.
				assert.True(t, decimal.RequireFromString(tt.amount).Equal(money.Amount))
			}
		})
	}
}

func TestMoneyEqual(t *testing.T) {
	a := NewMoney(decimal.RequireFromString("12.50"), "CHF")
	b := NewMoney(decimal.RequireFromString("12.5"), "CHF")
	c := NewMoney(decimal.RequireFromString("12.50"), "EUR")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestZeroMoney(t *testing.T) {
	z := ZeroMoney("CHF")
	assert.True(t, z.IsZero())
	assert.Equal(t, "0.00 CHF", z.String())
}
