package models

import "github.com/shopspring/decimal"

// minorUnitExponent is the number of decimal places between minor and major units (pence -> pounds).
const minorUnitExponent = -2

// MajorUnits converts an amount in minor units to a decimal in major units, e.g. 1250 -> 12.50.
func MajorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, minorUnitExponent)
}
