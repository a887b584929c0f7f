package bot

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"grid-trading-bot-go/internal/events"
	"grid-trading-bot-go/internal/exchange"
	"grid-trading-bot-go/internal/grid"
	"grid-trading-bot-go/internal/models"
	"grid-trading-bot-go/internal/notification"
	"grid-trading-bot-go/internal/order"
	"grid-trading-bot-go/internal/persistence"
	"grid-trading-bot-go/internal/reporter"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Bot runs one grid trading session. It owns the wiring between the grid, the
// order management layer and the venue, and drives either the backtest candle
// replay or the live/paper ticker loop.
type Bot struct {
	cfg         *models.Config
	tradingMode models.TradingMode
	logger      *zap.SugaredLogger

	bus            *events.Bus
	gridManager    *grid.Manager
	balanceTracker *order.BalanceTracker
	book           *order.Book
	orderManager   *order.Manager
	simulator      *order.Simulator
	statusTracker  *order.StatusTracker
	analyzer       *reporter.Analyzer
	exchange       exchange.Exchange
	repo           persistence.StateRepository

	candles    []models.Candle
	candleTime atomic.Int64 // backtest session clock, unix ms

	mu     sync.Mutex
	series []reporter.AccountValuePoint
}

// New wires a bot for the given mode. ex must be non-nil for live and paper
// trading and is ignored for backtests. repo may be nil to disable snapshots.
func New(cfg *models.Config, tradingMode models.TradingMode, ex exchange.Exchange, repo persistence.StateRepository, logger *zap.SugaredLogger) (*Bot, error) {
	if tradingMode != models.ModeBacktest && ex == nil {
		return nil, fmt.Errorf("trading mode %q requires an exchange", tradingMode)
	}

	gridManager, err := grid.NewManager(cfg, logger)
	if err != nil {
		return nil, err
	}

	b := &Bot{
		cfg:         cfg,
		tradingMode: tradingMode,
		logger:      logger,
		exchange:    ex,
		repo:        repo,
		gridManager: gridManager,
	}

	b.bus = events.NewBus(logger)
	feeCalculator := order.NewFeeCalculator(cfg.TradingFeeRate)
	b.balanceTracker = order.NewBalanceTracker(b.bus, feeCalculator, tradingMode, cfg.BaseCurrency, cfg.QuoteCurrency, logger)
	validator := order.NewValidator(logger)
	b.book = order.NewBook()
	b.simulator = order.NewSimulator(b.book, gridManager, b.bus, logger)

	var executor order.Executor
	if tradingMode == models.ModeBacktest {
		executor = order.NewSimulatedExecutor(b.sessionClock, logger)
	} else {
		retryDelay := time.Duration(cfg.RetryDelayMs) * time.Millisecond
		executor = order.NewLiveExecutor(ex, cfg.MaxRetries, retryDelay, cfg.MaxSlippage, logger)
		tickerInterval := time.Duration(cfg.TickerIntervalSec) * time.Second
		b.statusTracker = order.NewStatusTracker(b.book, b.bus, ex, cfg.Pair(), tickerInterval, logger)
	}

	notifier := notification.NewLogNotifier(logger, true)
	b.orderManager = order.NewManager(gridManager, validator, b.balanceTracker, b.book, b.bus, executor, notifier, b.simulator, tradingMode, cfg.Pair(), logger)
	b.analyzer = reporter.NewAnalyzer(cfg, b.book, logger)
	return b, nil
}

// sessionClock returns the backtest candle time once the replay has started,
// wall time before that.
func (b *Bot) sessionClock() int64 {
	if t := b.candleTime.Load(); t != 0 {
		return t
	}
	return time.Now().UnixMilli()
}

// LoadCandles supplies the historical data for a backtest run.
func (b *Bot) LoadCandles(candles []models.Candle) {
	b.candles = candles
}

// Run executes the trading session until the data is exhausted (backtest),
// the context is cancelled, or a take-profit/stop-loss stops the bot.
func (b *Bot) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b.bus.Subscribe(events.StopBot, func(data interface{}) error {
		b.logger.Infof("Stop requested: %v", data)
		cancel()
		return nil
	})

	if err := b.gridManager.InitializeGridsAndLevels(); err != nil {
		return err
	}

	var balanceSource order.BalanceSource
	if b.exchange != nil {
		balanceSource = b.exchange
	}
	if err := b.balanceTracker.SetupBalances(ctx, b.cfg.InitialBalance, b.cfg.InitialCryptoBalance, balanceSource); err != nil {
		return err
	}

	b.logPreviousSession()
	b.bus.Publish(events.StartBot, string(b.tradingMode))

	var err error
	if b.tradingMode == models.ModeBacktest {
		err = b.runBacktest(ctx)
	} else {
		err = b.runLiveOrPaper(ctx)
	}

	b.saveSession()
	return err
}

// Close releases the venue connection and the snapshot store.
func (b *Bot) Close() {
	if b.exchange != nil {
		if err := b.exchange.Close(); err != nil {
			b.logger.Warnf("Failed to close exchange connection: %v", err)
		}
	}
	if b.repo != nil {
		if err := b.repo.Close(); err != nil {
			b.logger.Warnf("Failed to close state repository: %v", err)
		}
	}
}

// runBacktest replays the candle history strictly sequentially. Each bar
// advances the session clock, may trigger the one-time grid initialization,
// simulates fills against the bar's range, evaluates TP/SL and records the
// account value.
func (b *Bot) runBacktest(ctx context.Context) error {
	if len(b.candles) == 0 {
		return fmt.Errorf("no candle data available for backtest")
	}

	b.logger.Infof("Starting backtest simulation")
	triggerPrice := b.gridManager.TriggerPrice()
	initialized := false
	var lastPrice decimal.Decimal
	haveLast := false

	for _, candle := range b.candles {
		if ctx.Err() != nil {
			break
		}
		timestamp := candle.OpenTime.UnixMilli()
		b.candleTime.Store(timestamp)
		currentPrice := candle.Close

		initialized = b.initializeGridOrdersOnce(ctx, currentPrice, triggerPrice, initialized, lastPrice, haveLast)
		if !initialized {
			b.recordAccountValue(candle.OpenTime, currentPrice)
			lastPrice = currentPrice
			haveLast = true
			continue
		}

		b.simulator.SimulateOrderFills(candle.High, candle.Low, timestamp)

		if b.handleTakeProfitStopLoss(ctx, currentPrice) {
			break
		}

		b.recordAccountValue(candle.OpenTime, currentPrice)
		lastPrice = currentPrice
		haveLast = true
	}

	b.logger.Infof("Ending backtest simulation")
	return nil
}

// runLiveOrPaper consumes the live ticker stream, throttled to the configured
// interval, with the order status tracker polling fills in the background.
func (b *Bot) runLiveOrPaper(ctx context.Context) error {
	b.logger.Infof("Starting %s trading", b.tradingMode)

	go b.statusTracker.Start(ctx)

	prices, err := b.exchange.ListenToTicker(ctx, b.cfg.Pair())
	if err != nil {
		return fmt.Errorf("failed to start ticker stream: %w", err)
	}

	triggerPrice := b.gridManager.TriggerPrice()
	tickerInterval := time.Duration(b.cfg.TickerIntervalSec) * time.Second
	initialized := false
	var lastPrice decimal.Decimal
	haveLast := false
	var lastHandled time.Time

	for currentPrice := range prices {
		if ctx.Err() != nil {
			break
		}
		now := time.Now()
		if now.Sub(lastHandled) < tickerInterval {
			continue
		}
		lastHandled = now

		b.recordAccountValue(now, currentPrice)

		initialized = b.initializeGridOrdersOnce(ctx, currentPrice, triggerPrice, initialized, lastPrice, haveLast)
		if !initialized {
			lastPrice = currentPrice
			haveLast = true
			continue
		}

		if b.handleTakeProfitStopLoss(ctx, currentPrice) {
			break
		}
		lastPrice = currentPrice
		haveLast = true
	}

	b.logger.Infof("Exiting %s trading loop.", b.tradingMode)
	return nil
}

// initializeGridOrdersOnce performs the initial purchase and places the grid
// ladder the first time the price path crosses the trigger price from below.
func (b *Bot) initializeGridOrdersOnce(ctx context.Context, currentPrice, triggerPrice decimal.Decimal, initialized bool, lastPrice decimal.Decimal, haveLast bool) bool {
	if initialized {
		return true
	}
	if !haveLast {
		b.logger.Debugf("No previous price recorded yet. Waiting for the next price update.")
		return false
	}

	crossed := lastPrice.LessThanOrEqual(triggerPrice) && triggerPrice.LessThanOrEqual(currentPrice)
	if crossed || lastPrice.Equal(triggerPrice) {
		b.logger.Infof("Current price %s reached trigger price %s. Will perform initial purchase.", currentPrice, triggerPrice)
		if err := b.orderManager.PerformInitialPurchase(ctx, currentPrice); err != nil {
			b.logger.Errorf("Initial purchase failed: %v", err)
		}
		b.logger.Infof("Initial purchase done, will initialize grid orders.")
		b.orderManager.InitializeGridOrders(ctx, currentPrice)
		return true
	}

	b.logger.Debugf("Current price %s did not cross trigger price %s. Last price: %s.", currentPrice, triggerPrice, lastPrice)
	return false
}

// handleTakeProfitStopLoss evaluates the configured thresholds and stops the
// session when one fires.
func (b *Bot) handleTakeProfitStopLoss(ctx context.Context, currentPrice decimal.Decimal) bool {
	if !b.evaluateTakeProfitStopLoss(ctx, currentPrice) {
		return false
	}
	b.logger.Infof("Take-profit or stop-loss triggered, ending trading session.")
	b.bus.Publish(events.StopBot, "take-profit or stop-loss hit")
	return true
}

func (b *Bot) evaluateTakeProfitStopLoss(ctx context.Context, currentPrice decimal.Decimal) bool {
	if b.balanceTracker.CryptoBalance().IsZero() {
		b.logger.Debugf("No crypto balance available; skipping TP/SL checks.")
		return false
	}

	if b.cfg.TakeProfitEnabled && currentPrice.GreaterThanOrEqual(b.cfg.TakeProfitThreshold) {
		b.logger.Infof("Take-profit triggered at %s. Executing TP order...", currentPrice)
		if err := b.orderManager.ExecuteTakeProfitOrStopLoss(ctx, currentPrice, true); err != nil {
			b.logger.Errorf("Take-profit order failed: %v", err)
		}
		return true
	}

	if b.cfg.StopLossEnabled && currentPrice.LessThanOrEqual(b.cfg.StopLossThreshold) {
		b.logger.Infof("Stop-loss triggered at %s. Executing SL order...", currentPrice)
		if err := b.orderManager.ExecuteTakeProfitOrStopLoss(ctx, currentPrice, false); err != nil {
			b.logger.Errorf("Stop-loss order failed: %v", err)
		}
		return true
	}
	return false
}

func (b *Bot) recordAccountValue(timestamp time.Time, price decimal.Decimal) {
	accountValue := b.balanceTracker.GetTotalBalanceValue(price)
	b.mu.Lock()
	b.series = append(b.series, reporter.AccountValuePoint{
		Timestamp:    timestamp,
		AccountValue: accountValue,
		Price:        price,
	})
	b.mu.Unlock()
}

// GeneratePerformanceReport renders the session summary and the order table.
func (b *Bot) GeneratePerformanceReport() (string, string) {
	b.mu.Lock()
	series := make([]reporter.AccountValuePoint, len(b.series))
	copy(series, b.series)
	b.mu.Unlock()

	var initialPrice, finalPrice decimal.Decimal
	if b.tradingMode == models.ModeBacktest && len(b.candles) > 0 {
		initialPrice = b.candles[0].Close
		finalPrice = b.candles[len(b.candles)-1].Close
	} else if len(series) > 0 {
		initialPrice = series[0].Price
		finalPrice = series[len(series)-1].Price
	}

	summary := b.analyzer.GeneratePerformanceSummary(
		series,
		initialPrice,
		b.balanceTracker.GetAdjustedFiatBalance(),
		b.balanceTracker.GetAdjustedCryptoBalance(),
		finalPrice,
		b.balanceTracker.TotalFees(),
	)
	return b.analyzer.RenderSummary(summary), b.analyzer.FormatOrders()
}

// logPreviousSession surfaces the last saved snapshot, if any. Sessions are
// not resumed from snapshots; the data is kept for operator inspection.
func (b *Bot) logPreviousSession() {
	if b.repo == nil {
		return
	}
	state, err := b.repo.LoadSession()
	if err != nil {
		b.logger.Warnf("Failed to load previous session snapshot: %v", err)
		return
	}
	if state == nil {
		return
	}
	b.logger.Infof("Found previous session snapshot for %s (%s) from %s.",
		state.Pair, state.TradingMode, state.LastUpdateTime.Format(time.RFC3339))
}

// saveSession persists the end-of-session snapshot of grid level states and
// balances.
func (b *Bot) saveSession() {
	if b.repo == nil {
		return
	}

	state := &models.SessionState{
		Pair:           b.cfg.Pair(),
		TradingMode:    b.tradingMode,
		StrategyType:   b.cfg.StrategyType,
		CentralPrice:   b.gridManager.CentralPrice,
		Balance:        b.balanceTracker.Balance(),
		CryptoBalance:  b.balanceTracker.CryptoBalance(),
		ReservedFiat:   b.balanceTracker.ReservedFiat(),
		ReservedCrypto: b.balanceTracker.ReservedCrypto(),
		TotalFees:      b.balanceTracker.TotalFees(),
		LastUpdateTime: time.Now().UTC(),
	}
	for _, price := range b.gridManager.PriceGrids {
		level := b.gridManager.Level(price)
		if level == nil {
			continue
		}
		state.GridLevels = append(state.GridLevels, models.GridLevelState{
			Price:         level.Price,
			CycleState:    string(level.State),
			NumBuyOrders:  len(level.BuyOrders),
			NumSellOrders: len(level.SellOrders),
		})
	}

	if err := b.repo.SaveSession(state); err != nil {
		b.logger.Errorf("Failed to save session snapshot: %v", err)
		return
	}
	b.logger.Infof("Session snapshot saved.")
}
