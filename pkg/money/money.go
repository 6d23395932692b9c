// Package money holds the fixed-point helpers used for USD amounts.
//
// Every amount in the ledger is a decimal.Decimal with two fractional digits
// (cents). Fractional cents produced by fee arithmetic are rounded half-up.
package money

import (
	"fmt"

	"github.com/amirasaad/usdledger/pkg/domain"
	"github.com/shopspring/decimal"
)

// Currency is the only currency the ledger holds.
const Currency = "USD"

// Scale is the number of fractional digits of the minor unit.
const Scale int32 = 2

// Zero is 0.00.
var Zero = decimal.Zero

// RoundHalfUp rounds to the minor unit. Ties round away from zero, which for
// the non-negative amounts the ledger computes fees on is round-half-up.
func RoundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Parse parses a positive amount with at most two fractional digits.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q is not a number", domain.ErrValidation, s)
	}
	if err := ValidatePositive(d); err != nil {
		return decimal.Decimal{}, err
	}
	return d, nil
}

// ValidatePositive checks d > 0 and that d has no sub-cent digits.
func ValidatePositive(d decimal.Decimal) error {
	if !d.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	if !d.Equal(d.Truncate(Scale)) {
		return fmt.Errorf("%w: amount has more than %d decimal places", domain.ErrValidation, Scale)
	}
	return nil
}

// ToMinorUnits converts to integer cents, as card processors expect.
func ToMinorUnits(d decimal.Decimal) int64 {
	return d.Shift(Scale).Round(0).IntPart()
}

// FromMinorUnits converts integer cents back to a decimal amount.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -Scale)
}

// Format renders d with exactly two fractional digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}
