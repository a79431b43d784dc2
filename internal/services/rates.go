package services

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
)

// percentage returns num/den*100 rounded to two decimals and clamped to
// [0,100]. A zero denominator yields 0.
func percentage(num, den int) float64 {
	if den <= 0 || num <= 0 {
		return 0
	}
	rate := decimal.NewFromInt(int64(num)).Mul(hundred).Div(decimal.NewFromInt(int64(den))).Round(2)
	if rate.GreaterThan(hundred) {
		rate = hundred
	}
	return rate.InexactFloat64()
}

// averageRate averages already-computed rates to two decimals
func averageRate(rates []float64) float64 {
	if len(rates) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, r := range rates {
		sum = sum.Add(decimal.NewFromFloat(r))
	}
	return sum.Div(decimal.NewFromInt(int64(len(rates)))).Round(2).InexactFloat64()
}
