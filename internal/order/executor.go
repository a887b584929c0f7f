package order

import (
	"context"

	"grid-trading-bot-go/internal/models"

	"github.com/shopspring/decimal"
)

// Executor places orders on a trading venue. The live executor talks to the
// exchange; the simulated executor synthesizes orders for backtests. The rest
// of the engine never knows which one it is using.
type Executor interface {
	// ExecuteLimitOrder places a limit order. A single attempt; failures are
	// returned as *ExecutionFailedError.
	ExecuteLimitOrder(ctx context.Context, side models.OrderSide, pair string, quantity, price decimal.Decimal) (*models.Order, error)

	// ExecuteMarketOrder places a market order, retrying with price
	// adjustments where the implementation supports it.
	ExecuteMarketOrder(ctx context.Context, side models.OrderSide, pair string, quantity, price decimal.Decimal) (*models.Order, error)
}
