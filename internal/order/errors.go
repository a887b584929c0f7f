package order

import (
	"errors"
	"fmt"

	"grid-trading-bot-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors for reservation failures. Callers treat these as expected
// trading conditions, not bugs.
var (
	ErrInsufficientBalance       = errors.New("insufficient fiat balance")
	ErrInsufficientCryptoBalance = errors.New("insufficient crypto balance")
)

// ExecutionFailedError reports an order placement that failed after the
// executor exhausted its own recovery (retries and price adjustments).
type ExecutionFailedError struct {
	Message  string
	Side     models.OrderSide
	Type     models.OrderType
	Pair     string
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Err      error
}

func (e *ExecutionFailedError) Error() string {
	msg := fmt.Sprintf("%s (side=%s, type=%s, pair=%s, quantity=%s, price=%s)",
		e.Message, e.Side, e.Type, e.Pair, e.Quantity, e.Price)
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ExecutionFailedError) Unwrap() error {
	return e.Err
}
