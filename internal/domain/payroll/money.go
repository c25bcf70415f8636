package payroll

import (
	"math"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func percent(rate float64) decimal.Decimal {
	return dec(rate).Div(hundred)
}

// money rounds half away from zero to two decimal places.
func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func validAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
