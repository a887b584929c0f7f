package order

import (
	"fmt"

	"github.com/shopspring/decimal"

	"go.uber.org/zap"
)

// defaultTolerance is shaved off the available balance when an order has to be
// scaled down, so the scaled order never consumes the balance to the last unit.
var defaultTolerance = decimal.New(1, -6) // 1e-6

// Validator clamps requested order quantities against the available balance
// before they reach an executor.
type Validator struct {
	tolerance decimal.Decimal
	logger    *zap.SugaredLogger
}

// NewValidator creates a validator with the default tolerance.
func NewValidator(logger *zap.SugaredLogger) *Validator {
	return &Validator{tolerance: defaultTolerance, logger: logger}
}

// AdjustAndValidateBuyQuantity scales a buy quantity down to what the fiat
// balance can pay for at the given price. Returns ErrInsufficientBalance when
// even the scaled quantity is not positive.
func (v *Validator) AdjustAndValidateBuyQuantity(balance, orderQuantity, price decimal.Decimal) (decimal.Decimal, error) {
	required := orderQuantity.Mul(price)
	adjusted := orderQuantity

	if required.GreaterThan(balance) {
		adjusted = balance.Sub(v.tolerance).Div(price)
		v.logger.Infof("Adjusted buy quantity from %s to %s to fit available balance %s at price %s.",
			orderQuantity, adjusted, balance, price)
	}

	if !adjusted.IsPositive() {
		return decimal.Zero, fmt.Errorf("cannot buy %s at price %s with balance %s: %w",
			orderQuantity, price, balance, ErrInsufficientBalance)
	}
	return adjusted, nil
}

// AdjustAndValidateSellQuantity scales a sell quantity down to the available
// crypto balance. Returns ErrInsufficientCryptoBalance when even the scaled
// quantity is not positive.
func (v *Validator) AdjustAndValidateSellQuantity(cryptoBalance, orderQuantity decimal.Decimal) (decimal.Decimal, error) {
	adjusted := orderQuantity

	if orderQuantity.GreaterThan(cryptoBalance) {
		adjusted = cryptoBalance.Sub(v.tolerance)
		v.logger.Infof("Adjusted sell quantity from %s to %s to fit available crypto balance %s.",
			orderQuantity, adjusted, cryptoBalance)
	}

	if !adjusted.IsPositive() {
		return decimal.Zero, fmt.Errorf("cannot sell %s with crypto balance %s: %w",
			orderQuantity, cryptoBalance, ErrInsufficientCryptoBalance)
	}
	return adjusted, nil
}
