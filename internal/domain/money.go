package domain

import "github.com/shopspring/decimal"

// Monetary amounts carry at most two fractional digits. RoundMoney applies
// the single rounding rule used everywhere: half away from zero at two
// places, applied when a value is computed, never after storage.
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// LineTotal computes the rounded total for one cart line.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return RoundMoney(unitPrice.Mul(decimal.NewFromInt(int64(quantity))))
}

// SumLineTotals adds already-rounded line totals into an order total.
func SumLineTotals(totals []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range totals {
		sum = sum.Add(t)
	}
	return RoundMoney(sum)
}

// MinorUnits converts a monetary amount to the smallest currency unit
// (two-digit currencies) for payment gateway requests.
func MinorUnits(amount decimal.Decimal) int64 {
	return RoundMoney(amount).Mul(decimal.NewFromInt(100)).IntPart()
}
