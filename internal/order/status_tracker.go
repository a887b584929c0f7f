package order

import (
	"context"
	"time"

	"grid-trading-bot-go/internal/events"
	"grid-trading-bot-go/internal/exchange"
	"grid-trading-bot-go/internal/models"

	"go.uber.org/zap"
)

// StatusTracker polls the exchange for the state of open orders in live and
// paper modes and publishes fill and cancellation events, giving those modes
// the same event shape the simulator produces in backtests.
type StatusTracker struct {
	book     *Book
	bus      *events.Bus
	exchange exchange.Exchange
	pair     string
	interval time.Duration
	logger   *zap.SugaredLogger
}

// NewStatusTracker creates a tracker polling at the given interval.
func NewStatusTracker(book *Book, bus *events.Bus, ex exchange.Exchange, pair string, interval time.Duration, logger *zap.SugaredLogger) *StatusTracker {
	return &StatusTracker{
		book:     book,
		bus:      bus,
		exchange: ex,
		pair:     pair,
		interval: interval,
		logger:   logger,
	}
}

// Start runs the polling loop until ctx is cancelled.
func (t *StatusTracker) Start(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Infof("Order status tracking stopped.")
			return
		case <-ticker.C:
			t.pollOpenOrders(ctx)
		}
	}
}

func (t *StatusTracker) pollOpenOrders(ctx context.Context) {
	for _, tracked := range t.book.OpenOrders() {
		remote, err := t.exchange.GetOrderStatus(ctx, t.pair, tracked.ID)
		if err != nil {
			t.logger.Warnf("Failed to query status of order %s: %v", tracked.ID, err)
			continue
		}

		switch remote.Status {
		case models.OrderStatusClosed:
			t.applyRemoteState(tracked, remote)
			t.logger.Infof("Order %s filled at %s.", tracked.ID, tracked.FillPrice())
			t.bus.Publish(events.OrderFilled, tracked)
		case models.OrderStatusCancelled:
			t.applyRemoteState(tracked, remote)
			t.logger.Warnf("Order %s was cancelled on the exchange.", tracked.ID)
			t.bus.Publish(events.OrderCancelled, tracked)
		case models.OrderStatusPartiallyFilled:
			tracked.Status = remote.Status
			tracked.Filled = remote.Filled
			tracked.Remaining = remote.Remaining
		}
	}
}

// applyRemoteState copies the exchange-reported terminal state onto the
// tracked order so every subscriber sees the same object the book holds.
func (t *StatusTracker) applyRemoteState(tracked, remote *models.Order) {
	tracked.Status = remote.Status
	tracked.Filled = remote.Filled
	tracked.Remaining = remote.Remaining
	tracked.Average = remote.Average
	tracked.LastTradeTimestamp = remote.LastTradeTimestamp
}
