package core

import (
	"github.com/shopspring/decimal"
)

var basisPointsPerUnit = decimal.NewFromInt(10000)

// PlatformFee returns total * feeBasisPoints / 10000, rounded to MonetaryPrecision.
func PlatformFee(total decimal.Decimal, feeBasisPoints int) decimal.Decimal {
	if feeBasisPoints <= 0 {
		return decimal.Zero
	}
	// Use decimal arithmetic for precise calculation
	bps := decimal.NewFromInt(int64(feeBasisPoints))
	return RoundAmount(total.Mul(bps).Div(basisPointsPerUnit))
}

// ProportionalAllocations returns each amount's share of their sum, rounded
// to MonetaryPrecision. The rounding residue goes to the first entry so the
// shares always sum to exactly one.
func ProportionalAllocations(amounts []decimal.Decimal) []decimal.Decimal {
	result := make([]decimal.Decimal, len(amounts))
	if len(amounts) == 0 {
		return result
	}

	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(a)
	}
	if !sum.IsPositive() {
		even := RoundAmount(decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(len(amounts)))))
		for i := range result {
			result[i] = even
		}
		result[0] = result[0].Add(decimal.NewFromInt(1).Sub(even.Mul(decimal.NewFromInt(int64(len(amounts))))))
		return result
	}

	allocated := decimal.Zero
	for i, a := range amounts {
		result[i] = a.DivRound(sum, MonetaryPrecision)
		allocated = allocated.Add(result[i])
	}
	result[0] = result[0].Add(decimal.NewFromInt(1).Sub(allocated))
	return result
}
