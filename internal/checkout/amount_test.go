// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package checkout

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"billpay/cli/internal/gateway"
)

func TestPolicyFor(t *testing.T) {
	tests := []struct {
		name      string
		product   gateway.Product
		wantFixed bool
		wantValue float64
		wantCurr  string
	}{
		{"price wins", gateway.Product{Price: 25, MinimumAmount: 1, MaximumAmount: 100, Currency: "ZWG"}, true, 25, "ZWG"},
		{"equal bounds", gateway.Product{MinimumAmount: 10, MaximumAmount: 10}, true, 10, "USD"},
		{"bounds within a cent", gateway.Product{MinAmount: 10, MaxAmount: 10.005}, true, 10, "USD"},
		{"range prefills minimum", gateway.Product{MinimumAmount: 5, MaximumAmount: 500}, false, 5, "USD"},
		{"no amounts", gateway.Product{}, false, 0, "USD"},
		{"zero bounds are not fixed", gateway.Product{MinimumAmount: 0, MaximumAmount: 0}, false, 0, "USD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pol := PolicyFor(tt.product)
			assert.Equal(t, tt.wantFixed, pol.Fixed)
			assert.InDelta(t, tt.wantValue, pol.Default, 0.0001)
			assert.Equal(t, tt.wantCurr, pol.Currency)
		})
	}
}

func TestAmountPolicyCheck(t *testing.T) {
	ranged := AmountPolicy{Min: 5, Max: 100, Currency: "USD"}
	fixed := AmountPolicy{Fixed: true, Default: 10, Currency: "USD"}

	assert.NoError(t, ranged.Check(5))
	assert.NoError(t, ranged.Check(100))
	assert.EqualError(t, ranged.Check(0), "amount must be greater than zero")
	assert.EqualError(t, ranged.Check(4.99), "minimum amount is 5.00 USD")
	assert.EqualError(t, ranged.Check(100.5), "maximum amount is 100.00 USD")

	assert.NoError(t, fixed.Check(10))
	assert.EqualError(t, fixed.Check(12), "amount is fixed at 10.00 USD")

	assert.NoError(t, AmountPolicy{}.Check(3))

	unbounded := PolicyFor(gateway.Product{})
	assert.EqualError(t, unbounded.Check(math.Inf(1)), "amount must be a number")
	assert.EqualError(t, unbounded.Check(math.NaN()), "amount must be a number")
	assert.EqualError(t, unbounded.Check(ParseAmount("Inf")), "amount must be greater than zero")
}

func TestFormatAndParseAmount(t *testing.T) {
	assert.Equal(t, "10.00", FormatAmount(10))
	assert.Equal(t, "0.50", FormatAmount(0.5))
	assert.Equal(t, "12.50", FormatAmount(12.5))
	assert.InDelta(t, 12.5, ParseAmount(" 12.5 "), 0.0001)
	assert.Zero(t, ParseAmount("abc"))
	assert.Zero(t, ParseAmount(""))
	assert.Zero(t, ParseAmount("Inf"))
	assert.Zero(t, ParseAmount("-infinity"))
	assert.Zero(t, ParseAmount("NaN"))
}
