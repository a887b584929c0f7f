package exchange

import (
	"context"

	"grid-trading-bot-go/internal/models"

	"github.com/shopspring/decimal"
)

// Exchange is the venue abstraction used by the live and paper trading modes.
// Backtests never touch an Exchange; they replay historical candles through
// the order simulator instead.
type Exchange interface {
	// GetCurrentPrice returns the latest traded price for the pair.
	GetCurrentPrice(ctx context.Context, pair string) (decimal.Decimal, error)

	// GetBalances returns the free balance per asset.
	GetBalances(ctx context.Context) (map[string]decimal.Decimal, error)

	// PlaceOrder submits an order. Price is ignored for market orders.
	PlaceOrder(ctx context.Context, pair string, side models.OrderSide, orderType models.OrderType, quantity, price decimal.Decimal) (*models.Order, error)

	// CancelOrder cancels an open order by exchange order ID.
	CancelOrder(ctx context.Context, pair, orderID string) error

	// GetOrderStatus fetches the current state of an order.
	GetOrderStatus(ctx context.Context, pair, orderID string) (*models.Order, error)

	// ListenToTicker streams live prices until ctx is cancelled. The returned
	// channel is closed when the stream ends.
	ListenToTicker(ctx context.Context, pair string) (<-chan decimal.Decimal, error)

	// Close releases any open connections.
	Close() error
}
