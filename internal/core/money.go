// Package core provides amount conversion and formatting utilities.
//
// The aggregator reports expenses as positive amounts while the ledger stores
// inflows as positive. Every crossing between the two conventions goes through
// ToLedgerAmount / FromLedgerAmount.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

func init() {
	// Dashboard clients read amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// ToLedgerAmount converts an aggregator amount (expense > 0) to the stored
// convention (expense < 0).
//
// Examples:
//
//	ToLedgerAmount(25.50) -> -25.50
//	ToLedgerAmount(-1200) -> 1200
func ToLedgerAmount(aggregator decimal.Decimal) decimal.Decimal {
	return aggregator.Neg()
}

// FromLedgerAmount is the inverse of ToLedgerAmount.
func FromLedgerAmount(ledger decimal.Decimal) decimal.Decimal {
	return ledger.Neg()
}

// ParseAmount parses a signed decimal amount, accepting a comma as decimal
// separator.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatUSD renders the absolute value of d as US currency, e.g. "$1,234.50".
func FormatUSD(d decimal.Decimal) string {
	fixed := d.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return "$" + b.String() + "." + frac
}
