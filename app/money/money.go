package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")

	hundred = decimal.NewFromInt(100)
)

// ToMinor converts a major-unit amount to minor units. Amounts with more than
// two decimal places are rejected rather than rounded.
func ToMinor(major decimal.Decimal) (int64, error) {
	minor := major.Mul(hundred)
	if !minor.Equal(minor.Truncate(0)) || !minor.BigInt().IsInt64() {
		return 0, ErrInvalidAmount
	}
	return minor.IntPart(), nil
}

func ToMajor(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(hundred)
}

// ParseMajor parses a decimal string such as "5000" or "49.99" into minor units.
func ParseMajor(value string) (int64, error) {
	major, err := decimal.NewFromString(value)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return ToMinor(major)
}

// FormatMajor renders minor units as a fixed two-decimal major string.
func FormatMajor(minor int64) string {
	return ToMajor(minor).StringFixed(2)
}

// RoundToMinor converts a provider-reported major amount, rounding half away from
// zero to the nearest minor unit. Amounts outside the int64 range are rejected.
func RoundToMinor(major decimal.Decimal) (int64, error) {
	minor := major.Mul(hundred).Round(0)
	if !minor.BigInt().IsInt64() {
		return 0, ErrInvalidAmount
	}
	return minor.IntPart(), nil
}
