package pricing

import "github.com/shopspring/decimal"

// Money is a monetary amount kept at full precision until it is displayed.
type Money = decimal.Decimal

// CurrencyPlaces is the number of decimal places used when presenting amounts.
const CurrencyPlaces = 2

var (
	zero       = decimal.Zero
	decimalOne = decimal.NewFromInt(1)
	hundred    = decimal.NewFromInt(100)
)

// Round rounds an amount to currency precision, half away from zero (half-up for
// the non-negative amounts the engine produces).
func Round(m Money) Money {
	return m.Round(CurrencyPlaces)
}

// MustParse converts a decimal literal into Money and panics on malformed input.
// Intended for constants and tests.
func MustParse(value string) Money {
	return decimal.RequireFromString(value)
}

// Percent converts an integer percentage (0-100) into a fraction.
func Percent(p int) Money {
	return decimal.NewFromInt(int64(p)).Div(hundred)
}

// MoneyFromInt converts an integer amount into Money.
func MoneyFromInt(v int) Money {
	return decimal.NewFromInt(int64(v))
}

func maxMoney(a, b Money) Money {
	if a.GreaterThan(b) {
		return a
	}
	return b
}
