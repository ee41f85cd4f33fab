package shared

import "github.com/shopspring/decimal"

// MinorUnitExponent is the number of decimal places between minor and major units.
const MinorUnitExponent = 2

// FormatMinor renders an amount in minor units as a major-unit string, e.g. 12345 -> "123.45".
func FormatMinor(amount int64) string {
	return decimal.New(amount, -MinorUnitExponent).StringFixed(MinorUnitExponent)
}
