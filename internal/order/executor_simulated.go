package order

import (
	"context"
	"fmt"
	"sync/atomic"

	"grid-trading-bot-go/internal/models"

	"github.com/jxskiss/base62"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Clock returns the current session time in unix milliseconds. Backtests
// supply the candle clock so order timestamps follow the replayed data; paper
// trading supplies wall time.
type Clock func() int64

// SimulatedExecutor synthesizes orders locally instead of sending them to a
// venue. Orders start OPEN and are later filled by the Simulator when a
// candle crosses their price.
type SimulatedExecutor struct {
	clock  Clock
	seq    atomic.Int64
	logger *zap.SugaredLogger
}

// NewSimulatedExecutor creates an executor driven by the given clock.
func NewSimulatedExecutor(clock Clock, logger *zap.SugaredLogger) *SimulatedExecutor {
	return &SimulatedExecutor{clock: clock, logger: logger}
}

func (e *SimulatedExecutor) ExecuteLimitOrder(_ context.Context, side models.OrderSide, pair string, quantity, price decimal.Decimal) (*models.Order, error) {
	order := e.newOrder(side, models.Limit, pair, quantity, price)
	e.logger.Debugf("Simulated limit order placed: %s", order)
	return order, nil
}

func (e *SimulatedExecutor) ExecuteMarketOrder(_ context.Context, side models.OrderSide, pair string, quantity, price decimal.Decimal) (*models.Order, error) {
	order := e.newOrder(side, models.Market, pair, quantity, price)
	e.logger.Debugf("Simulated market order placed: %s", order)
	return order, nil
}

func (e *SimulatedExecutor) newOrder(side models.OrderSide, orderType models.OrderType, pair string, quantity, price decimal.Decimal) *models.Order {
	now := e.clock()
	return &models.Order{
		ID:        e.nextOrderID(now),
		Symbol:    pair,
		Side:      side,
		Type:      orderType,
		Status:    models.OrderStatusOpen,
		Price:     price,
		Amount:    quantity,
		Remaining: quantity,
		Timestamp: now,
	}
}

// nextOrderID builds a unique client order ID from the session clock and a
// monotonic sequence, base62-encoded to stay within exchange ID length limits.
func (e *SimulatedExecutor) nextOrderID(now int64) string {
	seq := e.seq.Add(1)
	return fmt.Sprintf("%s-%s", base62.FormatInt(now), base62.FormatInt(seq))
}
