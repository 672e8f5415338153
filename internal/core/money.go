// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing bill amounts from user input
// and rendering them as rupee strings for display.
package core

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency is the display currency for all amounts. Amounts themselves are
// currency-agnostic magnitudes.
const Currency = money.INR

// ParseAmount converts a decimal string to a positive amount.
//
// Commas are treated as thousands separators ("1,250.00", "1,25,000") and
// removed before parsing. Values with more than two decimals are rounded
// half-up to two places. Returns ErrInvalidAmount for empty, malformed,
// negative or zero input.
//
// Examples:
//
//	ParseAmount("1250")     -> 1250
//	ParseAmount("1,250.50") -> 1250.5
//	ParseAmount("12.345")   -> 12.35
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", "")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		// Only positive values allowed
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(2)
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount rejects zero and negative amounts.
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// FormatAmount renders d in the display currency, e.g. "₹1,250.00".
func FormatAmount(d decimal.Decimal) string {
	minor := d.Shift(2).Round(0).IntPart()
	return money.New(minor, Currency).Display()
}
