package order

import (
	"context"
	"time"

	"grid-trading-bot-go/internal/exchange"
	"grid-trading-bot-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LiveExecutor places orders on a real exchange. Market orders are retried up
// to maxRetries times with a growing price allowance; partial fills are
// cancelled before the retry so the full quantity is attempted again.
type LiveExecutor struct {
	exchange    exchange.Exchange
	maxRetries  int
	retryDelay  time.Duration
	maxSlippage decimal.Decimal
	logger      *zap.SugaredLogger
}

// NewLiveExecutor creates an executor bound to an exchange. maxSlippage is the
// total price allowance spread linearly over the retry attempts.
func NewLiveExecutor(ex exchange.Exchange, maxRetries int, retryDelay time.Duration, maxSlippage decimal.Decimal, logger *zap.SugaredLogger) *LiveExecutor {
	return &LiveExecutor{
		exchange:    ex,
		maxRetries:  maxRetries,
		retryDelay:  retryDelay,
		maxSlippage: maxSlippage,
		logger:      logger,
	}
}

func (e *LiveExecutor) ExecuteLimitOrder(ctx context.Context, side models.OrderSide, pair string, quantity, price decimal.Decimal) (*models.Order, error) {
	order, err := e.exchange.PlaceOrder(ctx, pair, side, models.Limit, quantity, price)
	if err != nil {
		return nil, &ExecutionFailedError{
			Message:  "failed to execute limit order",
			Side:     side,
			Type:     models.Limit,
			Pair:     pair,
			Quantity: quantity,
			Price:    price,
			Err:      err,
		}
	}
	return order, nil
}

// ExecuteMarketOrder retries until the order is fully filled or the attempt
// budget is spent. Each retry moves the reference price further in the
// unfavorable direction, up for buys and down for sells, so the adjusted
// price keeps chasing the market.
func (e *LiveExecutor) ExecuteMarketOrder(ctx context.Context, side models.OrderSide, pair string, quantity, price decimal.Decimal) (*models.Order, error) {
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		order, err := e.exchange.PlaceOrder(ctx, pair, side, models.Market, quantity, price)
		if err != nil {
			e.logger.Errorf("Market order attempt %d/%d failed: %v", attempt+1, e.maxRetries, err)
			if !e.wait(ctx) {
				return nil, ctx.Err()
			}
			continue
		}

		if order.IsFilled() {
			return order, nil
		}
		if order.Status == models.OrderStatusPartiallyFilled {
			e.handlePartialFill(ctx, order, pair)
		}

		if !e.wait(ctx) {
			return nil, ctx.Err()
		}
		e.logger.Infof("Retrying market order. Attempt %d/%d.", attempt+1, e.maxRetries)
		price = e.adjustPrice(side, price, attempt)
	}

	return nil, &ExecutionFailedError{
		Message:  "failed to execute market order after maximum retries",
		Side:     side,
		Type:     models.Market,
		Pair:     pair,
		Quantity: quantity,
		Price:    price,
	}
}

// adjustPrice spreads the slippage allowance linearly across the attempts and
// compounds it onto the already adjusted price.
func (e *LiveExecutor) adjustPrice(side models.OrderSide, price decimal.Decimal, attempt int) decimal.Decimal {
	adjustment := e.maxSlippage.Div(decimal.NewFromInt(int64(e.maxRetries))).Mul(decimal.NewFromInt(int64(attempt)))
	if side == models.Buy {
		return price.Mul(decimal.NewFromInt(1).Add(adjustment))
	}
	return price.Mul(decimal.NewFromInt(1).Sub(adjustment))
}

// handlePartialFill cancels the remainder of a partially filled order so that
// the next attempt can work the full quantity again.
func (e *LiveExecutor) handlePartialFill(ctx context.Context, order *models.Order, pair string) {
	e.logger.Infof("Order %s partially filled with %s. Cancelling before retrying full quantity.", order.ID, order.Filled)
	if !e.cancelWithRetry(ctx, order.ID, pair) {
		e.logger.Errorf("Unable to cancel partially filled order %s after retries.", order.ID)
	}
}

func (e *LiveExecutor) cancelWithRetry(ctx context.Context, orderID, pair string) bool {
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		err := e.exchange.CancelOrder(ctx, pair, orderID)
		if err == nil {
			e.logger.Infof("Successfully cancelled order %s.", orderID)
			return true
		}
		e.logger.Warnf("Cancel attempt %d/%d for order %s failed: %v", attempt+1, e.maxRetries, orderID, err)
		if !e.wait(ctx) {
			return false
		}
	}
	return false
}

// wait sleeps for the retry delay, returning false when ctx ends first.
func (e *LiveExecutor) wait(ctx context.Context) bool {
	timer := time.NewTimer(e.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
