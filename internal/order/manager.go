package order

import (
	"context"
	"errors"
	"fmt"

	"grid-trading-bot-go/internal/events"
	"grid-trading-bot-go/internal/grid"
	"grid-trading-bot-go/internal/models"
	"grid-trading-bot-go/internal/notification"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Manager drives the order side of the grid: it places the initial ladder of
// limit orders, reacts to fills by placing the opposite order on the paired
// level, and executes the one-shot market orders (initial purchase,
// take-profit, stop-loss).
type Manager struct {
	gridManager    *grid.Manager
	validator      *Validator
	balanceTracker *BalanceTracker
	book           *Book
	bus            *events.Bus
	executor       Executor
	notifier       notification.Notifier
	simulator      *Simulator
	tradingMode    models.TradingMode
	pair           string
	logger         *zap.SugaredLogger
}

// NewManager wires the order manager and subscribes it to fill and
// cancellation events.
func NewManager(
	gridManager *grid.Manager,
	validator *Validator,
	balanceTracker *BalanceTracker,
	book *Book,
	bus *events.Bus,
	executor Executor,
	notifier notification.Notifier,
	simulator *Simulator,
	tradingMode models.TradingMode,
	pair string,
	logger *zap.SugaredLogger,
) *Manager {
	m := &Manager{
		gridManager:    gridManager,
		validator:      validator,
		balanceTracker: balanceTracker,
		book:           book,
		bus:            bus,
		executor:       executor,
		notifier:       notifier,
		simulator:      simulator,
		tradingMode:    tradingMode,
		pair:           pair,
		logger:         logger,
	}
	bus.Subscribe(events.OrderFilled, m.onOrderFilled)
	bus.Subscribe(events.OrderCancelled, m.onOrderCancelled)
	return m
}

// InitializeGridOrders places the initial buy orders below and sell orders
// above the current price. A failure on one level is reported and the loop
// moves on; the rest of the ladder still goes up.
func (m *Manager) InitializeGridOrders(ctx context.Context, currentPrice decimal.Decimal) {
	m.initializeBuyOrders(ctx, currentPrice)
	m.initializeSellOrders(ctx, currentPrice)
}

func (m *Manager) initializeBuyOrders(ctx context.Context, currentPrice decimal.Decimal) {
	for _, price := range m.gridManager.SortedBuyGrids {
		if price.GreaterThanOrEqual(currentPrice) {
			m.logger.Infof("Skipping grid level at price %s for BUY order: above current price.", price)
			continue
		}

		level := m.gridManager.Level(price)
		if !m.gridManager.CanPlaceOrder(level, models.Buy) {
			continue
		}

		totalBalanceValue := m.balanceTracker.GetTotalBalanceValue(currentPrice)
		orderQuantity := m.gridManager.OrderSizeForGridLevel(totalBalanceValue, currentPrice)

		if err := m.placeInitialOrder(ctx, models.Buy, level, orderQuantity); err != nil {
			m.handleOrderInitError(models.Buy, price, err)
		}
	}
}

func (m *Manager) initializeSellOrders(ctx context.Context, currentPrice decimal.Decimal) {
	for _, price := range m.gridManager.SortedSellGrids {
		if price.LessThanOrEqual(currentPrice) {
			m.logger.Infof("Skipping grid level at price %s for SELL order: below or equal to current price.", price)
			continue
		}

		level := m.gridManager.Level(price)
		if !m.gridManager.CanPlaceOrder(level, models.Sell) {
			continue
		}

		totalBalanceValue := m.balanceTracker.GetTotalBalanceValue(currentPrice)
		orderQuantity := m.gridManager.OrderSizeForGridLevel(totalBalanceValue, currentPrice)

		if err := m.placeInitialOrder(ctx, models.Sell, level, orderQuantity); err != nil {
			m.handleOrderInitError(models.Sell, price, err)
		}
	}
}

func (m *Manager) placeInitialOrder(ctx context.Context, side models.OrderSide, level *grid.Level, orderQuantity decimal.Decimal) error {
	var adjustedQuantity decimal.Decimal
	var err error

	if side == models.Buy {
		adjustedQuantity, err = m.validator.AdjustAndValidateBuyQuantity(m.balanceTracker.Balance(), orderQuantity, level.Price)
	} else {
		adjustedQuantity, err = m.validator.AdjustAndValidateSellQuantity(m.balanceTracker.CryptoBalance(), orderQuantity)
	}
	if err != nil {
		return err
	}

	m.logger.Infof("Placing initial %s limit order at grid level %s for %s %s.", side, level.Price, adjustedQuantity, m.pair)
	o, err := m.executor.ExecuteLimitOrder(ctx, side, m.pair, adjustedQuantity, level.Price)
	if err != nil {
		return err
	}
	if o == nil {
		return &ExecutionFailedError{
			Message:  "order placement returned no order",
			Side:     side,
			Type:     models.Limit,
			Pair:     m.pair,
			Quantity: adjustedQuantity,
			Price:    level.Price,
		}
	}

	if side == models.Buy {
		err = m.balanceTracker.ReserveFundsForBuy(adjustedQuantity.Mul(level.Price))
	} else {
		err = m.balanceTracker.ReserveFundsForSell(adjustedQuantity)
	}
	if err != nil {
		return err
	}

	m.gridManager.MarkOrderPending(level, o)
	m.book.AddOrder(o, level)
	return nil
}

// handleOrderInitError reports a failed initial placement. Execution failures
// are known trading conditions; everything else is surfaced as an unexpected
// error.
func (m *Manager) handleOrderInitError(side models.OrderSide, price decimal.Decimal, err error) {
	var execErr *ExecutionFailedError
	if errors.As(err, &execErr) {
		m.logger.Errorf("Failed to initialize %s order at grid level %s: %v", side, price, err)
		m.notifier.Notify(notification.OrderFailed, fmt.Sprintf("Error while placing initial %s order. %v", side, err))
		return
	}
	m.logger.Errorf("Unexpected error during %s order initialization at grid level %s: %v", side, price, err)
	m.notifier.Notify(notification.ErrorOccurred, fmt.Sprintf("Error while placing initial %s order: %v", side, err))
}

// onOrderCancelled acknowledges a cancellation. Orders are not re-placed on
// the freed level yet.
// TODO: re-place the order on the level that the cancellation freed up.
func (m *Manager) onOrderCancelled(data interface{}) error {
	o, ok := data.(*models.Order)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for order cancelled event", data)
	}
	m.logger.Warnf("Order cancelled at grid level, re-placement not yet implemented: %s", o)
	m.notifier.Notify(notification.OrderCancelled, o.String())
	return nil
}

func (m *Manager) onOrderFilled(data interface{}) error {
	o, ok := data.(*models.Order)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for order filled event", data)
	}

	level := m.book.GridLevelForOrder(o)
	if level == nil {
		m.logger.Errorf("Could not handle order completion, no grid level found for filled order %s", o)
		return nil
	}

	if err := m.handleOrderCompletion(o, level); err != nil {
		m.logger.Errorf("Failed while handling filled order %s: %v", o.ID, err)
		m.notifier.Notify(notification.OrderFailed, fmt.Sprintf("Failed handling filled order. %v", err))
		return err
	}
	return nil
}

func (m *Manager) handleOrderCompletion(o *models.Order, level *grid.Level) error {
	switch o.Side {
	case models.Buy:
		return m.handleBuyOrderCompletion(o, level)
	case models.Sell:
		return m.handleSellOrderCompletion(o, level)
	}
	return nil
}

func (m *Manager) handleBuyOrderCompletion(o *models.Order, level *grid.Level) error {
	m.logger.Infof("Buy order completed at grid level %s.", level)
	m.gridManager.CompleteOrder(level, models.Buy)

	pairedSellLevel := m.gridManager.PairedSellLevel(level)
	if pairedSellLevel == nil || !m.gridManager.CanPlaceOrder(pairedSellLevel, models.Sell) {
		m.logger.Warnf("No valid sell grid level found for buy grid level %s. Skipping sell order placement.", level)
		return nil
	}
	return m.placePairedOrder(models.Sell, level, pairedSellLevel, o.Filled)
}

func (m *Manager) handleSellOrderCompletion(o *models.Order, level *grid.Level) error {
	m.logger.Infof("Sell order completed at grid level %s.", level)
	m.gridManager.CompleteOrder(level, models.Sell)

	pairedBuyLevel := m.getOrCreatePairedBuyLevel(level)
	if pairedBuyLevel == nil {
		m.logger.Errorf("Failed to find or create a paired buy grid level for grid level %s.", level)
		return nil
	}
	return m.placePairedOrder(models.Buy, level, pairedBuyLevel, o.Filled)
}

// getOrCreatePairedBuyLevel prefers the level already paired with the sell
// level when it can take a buy; otherwise it falls back to the level directly
// below, whatever state that level is in.
func (m *Manager) getOrCreatePairedBuyLevel(sellLevel *grid.Level) *grid.Level {
	pairedBuyLevel := sellLevel.PairedBuyLevel
	if pairedBuyLevel != nil && m.gridManager.CanPlaceOrder(pairedBuyLevel, models.Buy) {
		m.logger.Infof("Found valid paired buy level %s for sell level %s.", pairedBuyLevel, sellLevel)
		return pairedBuyLevel
	}

	fallbackBuyLevel := m.gridManager.GridLevelBelow(sellLevel)
	if fallbackBuyLevel != nil {
		m.logger.Infof("Paired fallback buy level %s with sell level %s.", fallbackBuyLevel, sellLevel)
		return fallbackBuyLevel
	}

	m.logger.Warnf("No valid fallback buy level found below sell level %s.", sellLevel)
	return nil
}

// placePairedOrder places the follow-up order a fill triggered and pairs the
// source and target levels.
func (m *Manager) placePairedOrder(side models.OrderSide, sourceLevel, targetLevel *grid.Level, quantity decimal.Decimal) error {
	var adjustedQuantity decimal.Decimal
	var err error

	if side == models.Buy {
		adjustedQuantity, err = m.validator.AdjustAndValidateBuyQuantity(m.balanceTracker.Balance(), quantity, targetLevel.Price)
	} else {
		adjustedQuantity, err = m.validator.AdjustAndValidateSellQuantity(m.balanceTracker.CryptoBalance(), quantity)
	}
	if err != nil {
		return err
	}

	o, err := m.executor.ExecuteLimitOrder(context.Background(), side, m.pair, adjustedQuantity, targetLevel.Price)
	if err != nil {
		return err
	}
	if o == nil {
		m.logger.Errorf("Failed to place %s order at grid level %s", side, targetLevel)
		return nil
	}

	pairingType := grid.PairingSell
	if side == models.Buy {
		pairingType = grid.PairingBuy
	}
	if err := m.gridManager.PairGridLevels(sourceLevel, targetLevel, pairingType); err != nil {
		return err
	}

	if side == models.Buy {
		err = m.balanceTracker.ReserveFundsForBuy(o.Amount.Mul(targetLevel.Price))
	} else {
		err = m.balanceTracker.ReserveFundsForSell(o.Amount)
	}
	if err != nil {
		return err
	}

	m.gridManager.MarkOrderPending(targetLevel, o)
	m.book.AddOrder(o, targetLevel)
	m.notifier.Notify(notification.OrderPlaced, o.String())
	return nil
}

// PerformInitialPurchase buys the strategy's starting crypto position with a
// market order. In backtests the fill is synthesized immediately; in live and
// paper modes the balances are updated from the reported fill instead.
func (m *Manager) PerformInitialPurchase(ctx context.Context, currentPrice decimal.Decimal) error {
	initialQuantity := m.gridManager.InitialOrderQuantity(m.balanceTracker.Balance(), m.balanceTracker.CryptoBalance(), currentPrice)
	if !initialQuantity.IsPositive() {
		m.logger.Warnf("Initial purchase quantity is zero or negative. Skipping initial purchase.")
		return nil
	}

	m.logger.Infof("Performing initial crypto purchase: %s at price %s.", initialQuantity, currentPrice)

	buyOrder, err := m.executor.ExecuteMarketOrder(ctx, models.Buy, m.pair, initialQuantity, currentPrice)
	if err != nil {
		m.logger.Errorf("Failed while executing initial purchase: %v", err)
		m.notifier.Notify(notification.OrderFailed, fmt.Sprintf("Error while performing initial purchase. %v", err))
		return err
	}

	m.logger.Infof("Initial crypto purchase completed. Order details: %s", buyOrder)
	m.book.AddOrder(buyOrder, nil)
	m.notifier.Notify(notification.OrderPlaced, fmt.Sprintf("Initial purchase done: %s", buyOrder))

	if m.tradingMode == models.ModeBacktest {
		m.simulator.SimulateFill(buyOrder, buyOrder.Timestamp)
		return nil
	}
	return m.balanceTracker.UpdateAfterInitialPurchase(buyOrder)
}

// ExecuteTakeProfitOrStopLoss liquidates the crypto position with a market
// sell when a take-profit or stop-loss threshold triggered.
func (m *Manager) ExecuteTakeProfitOrStopLoss(ctx context.Context, currentPrice decimal.Decimal, takeProfit bool) error {
	event := "Stop loss"
	notificationType := notification.StopLossTriggered
	if takeProfit {
		event = "Take profit"
		notificationType = notification.TakeProfitTriggered
	}

	quantity := m.balanceTracker.CryptoBalance()
	o, err := m.executor.ExecuteMarketOrder(ctx, models.Sell, m.pair, quantity, currentPrice)
	if err != nil {
		m.logger.Errorf("Failed to execute %s sell order at %s: %v", event, currentPrice, err)
		m.notifier.Notify(notification.OrderFailed, fmt.Sprintf("Failed to place %s order: %v", event, err))
		return err
	}
	if o == nil {
		err := &ExecutionFailedError{
			Message:  fmt.Sprintf("%s order execution returned no order", event),
			Side:     models.Sell,
			Type:     models.Market,
			Pair:     m.pair,
			Quantity: quantity,
			Price:    currentPrice,
		}
		m.notifier.Notify(notification.OrderFailed, err.Error())
		return err
	}

	m.book.AddOrder(o, nil)
	m.notifier.Notify(notificationType, o.String())
	m.logger.Infof("%s triggered at %s and sell order executed.", event, currentPrice)
	return nil
}
