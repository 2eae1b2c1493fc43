// Package money converts between minor-unit integers used in storage and the
// two-decimal strings exchanged with clients.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const scale = 2

// MaxCents bounds every amount the system stores or sums.
const MaxCents int64 = 1e17

var maxCents = decimal.NewFromInt(MaxCents)

// ErrOutOfRange is returned when an amount falls outside (-MaxCents, MaxCents).
var ErrOutOfRange = errors.New("amount out of range")

// Format renders cents as a fixed two-decimal string, e.g. 6000 -> "60.00".
func Format(cents int64) string {
	return decimal.NewFromInt(cents).Shift(-scale).StringFixed(scale)
}

// ToDecimal converts cents to a decimal amount in major units.
func ToDecimal(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Shift(-scale)
}

// FromDecimal converts a major-unit amount to cents. Amounts with more than
// two fractional digits are rejected rather than rounded.
func FromDecimal(amount decimal.Decimal) (int64, error) {
	shifted := amount.Shift(scale)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", amount.String(), scale)
	}
	if !shifted.Abs().LessThan(maxCents) {
		return 0, fmt.Errorf("amount %s: %w", amount.String(), ErrOutOfRange)
	}
	return shifted.IntPart(), nil
}

// Parse reads a decimal string such as "100.50" into cents.
func Parse(raw string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	return FromDecimal(d)
}

// LineTotal multiplies a unit price by a quantity and rounds half away from
// zero to the nearest cent. The product is computed in arbitrary precision and
// rejected when it reaches MaxCents, or rounds to zero for a positive price.
func LineTotal(unitPriceCents int64, quantity decimal.Decimal) (int64, error) {
	total := decimal.NewFromInt(unitPriceCents).Mul(quantity).Round(0)
	if !total.Abs().LessThan(maxCents) {
		return 0, fmt.Errorf("line total %s cents: %w", total.String(), ErrOutOfRange)
	}
	if unitPriceCents > 0 && quantity.IsPositive() && !total.IsPositive() {
		return 0, fmt.Errorf("line total for %s x %d cents rounds to zero: %w", quantity.String(), unitPriceCents, ErrOutOfRange)
	}
	return total.IntPart(), nil
}

// Add sums amounts and fails once the running total leaves the valid range.
func Add(amounts ...int64) (int64, error) {
	var total int64
	for _, a := range amounts {
		if a <= -MaxCents || a >= MaxCents {
			return 0, fmt.Errorf("amount %d: %w", a, ErrOutOfRange)
		}
		total += a
		if total <= -MaxCents || total >= MaxCents {
			return 0, fmt.Errorf("running total %d: %w", total, ErrOutOfRange)
		}
	}
	return total, nil
}
