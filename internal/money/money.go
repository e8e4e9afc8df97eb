// Package money converts between rupee amounts at the API boundary and the
// int64 paise used everywhere else.
package money

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for negative, fractional-paise or out-of-range amounts.
var ErrInvalidAmount = errors.New("invalid amount")

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// ToMinor converts a rupee amount to paise. More than two decimal places is an error, not a rounding.
func ToMinor(rupees decimal.Decimal) (int64, error) {
	if rupees.IsNegative() {
		return 0, fmt.Errorf("%w: %s is negative", ErrInvalidAmount, rupees)
	}
	paise := rupees.Shift(2)
	if !paise.IsInteger() {
		return 0, fmt.Errorf("%w: %s has more than two decimal places", ErrInvalidAmount, rupees)
	}
	if paise.GreaterThan(maxMinor) {
		return 0, fmt.Errorf("%w: %s is too large", ErrInvalidAmount, rupees)
	}
	return paise.IntPart(), nil
}

// FromMinor converts paise to rupees.
func FromMinor(paise int64) decimal.Decimal {
	return decimal.New(paise, -2)
}

// Format renders paise as a rupee string with two decimals.
func Format(paise int64) string {
	return FromMinor(paise).StringFixed(2)
}
