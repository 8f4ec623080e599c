// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package checkout

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"billpay/cli/internal/gateway"
)

// DefaultCurrency applies when a product carries none.
const DefaultCurrency = "USD"

// fixedTolerance treats min and max as equal when they differ by less than a cent.
const fixedTolerance = 0.01

// AmountPolicy says how the amount field behaves for a product.
type AmountPolicy struct {
	// Fixed means the amount is set by the product and cannot be edited.
	Fixed bool
	// Default prefills the field; zero leaves it empty.
	Default  float64
	Min      float64
	Max      float64
	Currency string
}

// PolicyFor derives the amount rules of p. A product with a price, or with
// equal non-zero bounds, has a fixed amount.
func PolicyFor(p gateway.Product) AmountPolicy {
	price, lo, hi := float64(p.Price), p.Min(), p.Max()
	pol := AmountPolicy{Min: lo, Max: hi, Currency: p.Currency}
	if pol.Currency == "" {
		pol.Currency = DefaultCurrency
	}
	switch {
	case price > 0:
		pol.Fixed, pol.Default = true, price
	case lo > 0 && hi > 0 && math.Abs(lo-hi) < fixedTolerance:
		pol.Fixed, pol.Default = true, lo
	case lo > 0:
		pol.Default = lo
	}
	return pol
}

// Check reports why v cannot be paid, or nil.
func (a AmountPolicy) Check(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("amount must be a number")
	}
	if v <= 0 {
		return fmt.Errorf("amount must be greater than zero")
	}
	if a.Fixed {
		if math.Abs(v-a.Default) >= fixedTolerance {
			return fmt.Errorf("amount is fixed at %s %s", FormatAmount(a.Default), a.Currency)
		}
		return nil
	}
	if a.Min > 0 && v < a.Min {
		return fmt.Errorf("minimum amount is %s %s", FormatAmount(a.Min), a.Currency)
	}
	if a.Max > 0 && v > a.Max {
		return fmt.Errorf("maximum amount is %s %s", FormatAmount(a.Max), a.Currency)
	}
	return nil
}

// FormatAmount renders v with two decimals.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// ParseAmount reads a user-typed amount. Blank, malformed or non-finite input is zero.
func ParseAmount(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
