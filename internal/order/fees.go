package order

import (
	"github.com/shopspring/decimal"
)

// FeeCalculator computes trading fees from the configured flat fee rate.
type FeeCalculator struct {
	feeRate decimal.Decimal
}

// NewFeeCalculator creates a calculator for the given fee rate, e.g. 0.001
// for 0.1%.
func NewFeeCalculator(feeRate decimal.Decimal) *FeeCalculator {
	return &FeeCalculator{feeRate: feeRate}
}

// CalculateFee returns the fee for a trade of the given quote value.
func (f *FeeCalculator) CalculateFee(tradeValue decimal.Decimal) decimal.Decimal {
	return tradeValue.Mul(f.feeRate)
}
