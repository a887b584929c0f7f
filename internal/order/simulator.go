package order

import (
	"time"

	"grid-trading-bot-go/internal/events"
	"grid-trading-bot-go/internal/grid"
	"grid-trading-bot-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Simulator fills open orders during backtests by checking which grid prices
// a candle's high-low range crossed. It is only ever driven from the
// single-threaded candle replay loop.
type Simulator struct {
	book        *Book
	gridManager *grid.Manager
	bus         *events.Bus
	logger      *zap.SugaredLogger
}

// NewSimulator creates a fill simulator over the given book and grid.
func NewSimulator(book *Book, gridManager *grid.Manager, bus *events.Bus, logger *zap.SugaredLogger) *Simulator {
	return &Simulator{
		book:        book,
		gridManager: gridManager,
		bus:         bus,
		logger:      logger,
	}
}

// SimulateOrderFills fills every open order whose grid price lies within the
// candle's [low, high] range. Orders are visited in placement order so a
// backtest replays identically run after run.
func (s *Simulator) SimulateOrderFills(highPrice, lowPrice decimal.Decimal, timestamp int64) {
	pendingOrders := s.book.OpenOrders()
	crossedBuy := crossedLevels(s.gridManager.SortedBuyGrids, lowPrice, highPrice)
	crossedSell := crossedLevels(s.gridManager.SortedSellGrids, lowPrice, highPrice)

	s.logger.Debugf("Simulating fills: high %s, low %s, pending orders: %d", highPrice, lowPrice, len(pendingOrders))

	for _, o := range pendingOrders {
		priceKey := o.Price.String()
		if (o.Side == models.Buy && crossedBuy[priceKey]) || (o.Side == models.Sell && crossedSell[priceKey]) {
			s.SimulateFill(o, timestamp)
		}
	}
}

// SimulateFill marks an order fully filled at its limit price and publishes
// the fill on the event bus.
func (s *Simulator) SimulateFill(order *models.Order, timestamp int64) {
	order.Filled = order.Amount
	order.Remaining = decimal.Zero
	order.Status = models.OrderStatusClosed
	order.Timestamp = timestamp
	order.LastTradeTimestamp = timestamp

	s.logger.Infof("Simulated fill for %s order at price %s with amount %s at %s.",
		order.Side, order.Price, order.Amount, time.UnixMilli(timestamp).UTC().Format("2006-01-02 15:04:05"))

	s.bus.Publish(events.OrderFilled, order)
}

func crossedLevels(gridPrices []decimal.Decimal, low, high decimal.Decimal) map[string]bool {
	crossed := make(map[string]bool)
	for _, price := range gridPrices {
		if price.GreaterThanOrEqual(low) && price.LessThanOrEqual(high) {
			crossed[price.String()] = true
		}
	}
	return crossed
}
