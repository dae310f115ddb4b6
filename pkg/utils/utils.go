package utils

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// MinorUnitPlaces is the number of decimal places kept for currency amounts.
const MinorUnitPlaces = 2

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds an amount to the nearest minor currency unit.
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(MinorUnitPlaces)
}

// PercentOf returns amount * pct / 100 rounded to the minor currency unit.
func PercentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return RoundMoney(amount.Mul(pct).Div(hundred))
}

// HasMinorUnitPrecision reports whether v has no digits past the minor
// currency unit. Percentages share the same precision.
func HasMinorUnitPrecision(v decimal.Decimal) bool {
	return v.Equal(v.Truncate(MinorUnitPlaces))
}

// Hundred is 100 as a decimal; percentages in this module are expressed out of it.
func Hundred() decimal.Decimal {
	return hundred
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween counts whole calendar days from `from` to `to`.
// Negative when `to` is before `from`.
func DaysBetween(from, to time.Time) int {
	start := StartOfDay(from)
	end := StartOfDay(to.In(from.Location()))
	return int(math.Round(end.Sub(start).Hours() / 24))
}
