package bot

import (
	"context"
	"testing"
	"time"

	"grid-trading-bot-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func backtestConfig() *models.Config {
	return &models.Config{
		BaseCurrency:         "ETH",
		QuoteCurrency:        "USDT",
		StrategyType:         models.SimpleGrid,
		SpacingType:          models.SpacingArithmetic,
		NumGrids:             10,
		BottomRange:          decimal.RequireFromString("100"),
		TopRange:             decimal.RequireFromString("190"),
		InitialBalance:       decimal.RequireFromString("10000"),
		InitialCryptoBalance: decimal.RequireFromString("10"),
		TradingFeeRate:       decimal.RequireFromString("0.001"),
	}
}

// syntheticCandles builds a deterministic bar sequence that crosses the
// central price from below and then oscillates across the ladder.
func syntheticCandles(closes []string) []models.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, 0, len(closes))
	prev := decimal.RequireFromString(closes[0])
	for i, c := range closes {
		cl := decimal.RequireFromString(c)
		high := decimal.Max(prev, cl)
		low := decimal.Min(prev, cl)
		candles = append(candles, models.Candle{
			OpenTime: start.Add(time.Duration(i) * time.Minute),
			Open:     prev,
			High:     high,
			Low:      low,
			Close:    cl,
			Volume:   decimal.RequireFromString("100"),
		})
		prev = cl
	}
	return candles
}

func runBacktestBot(t *testing.T, cfg *models.Config, candles []models.Candle) *Bot {
	t.Helper()
	b, err := New(cfg, models.ModeBacktest, nil, nil, zap.NewNop().Sugar())
	require.NoError(t, err)
	b.LoadCandles(candles)
	require.NoError(t, b.Run(context.Background()))
	return b
}

func TestNewRequiresExchangeOutsideBacktest(t *testing.T) {
	_, err := New(backtestConfig(), models.ModeLive, nil, nil, zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestRunBacktestWithoutCandlesFails(t *testing.T) {
	b, err := New(backtestConfig(), models.ModeBacktest, nil, nil, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Error(t, b.Run(context.Background()))
}

// TestBacktestTriggerGate verifies that no orders go out while the price stays
// below the trigger, and that the ladder appears once it is crossed from below.
func TestBacktestTriggerGate(t *testing.T) {
	// Central price of the ladder is 145. First run never reaches it.
	below := runBacktestBot(t, backtestConfig(), syntheticCandles([]string{"110", "120", "130", "140"}))
	assert.Empty(t, below.book.AllOrders())

	// Second run crosses 145 on the second bar.
	crossed := runBacktestBot(t, backtestConfig(), syntheticCandles([]string{"140", "150", "150"}))
	assert.NotEmpty(t, crossed.book.AllOrders())
}

// TestBacktestIsDeterministic verifies that two replays of the same candle
// data end with identical balances and fill counts.
func TestBacktestIsDeterministic(t *testing.T) {
	closes := []string{"140", "150", "130", "160", "110", "170", "120", "180", "100", "150"}

	first := runBacktestBot(t, backtestConfig(), syntheticCandles(closes))
	second := runBacktestBot(t, backtestConfig(), syntheticCandles(closes))

	assert.True(t, first.balanceTracker.Balance().Equal(second.balanceTracker.Balance()),
		"fiat: %s vs %s", first.balanceTracker.Balance(), second.balanceTracker.Balance())
	assert.True(t, first.balanceTracker.CryptoBalance().Equal(second.balanceTracker.CryptoBalance()),
		"crypto: %s vs %s", first.balanceTracker.CryptoBalance(), second.balanceTracker.CryptoBalance())
	assert.True(t, first.balanceTracker.TotalFees().Equal(second.balanceTracker.TotalFees()))
	assert.Equal(t, len(first.book.CompletedOrders()), len(second.book.CompletedOrders()))
	assert.Equal(t, len(first.book.AllOrders()), len(second.book.AllOrders()))
}

// TestBacktestGridTradesRoundTrips verifies that an oscillating price path
// produces completed buy and sell fills and keeps the account value series
// one point per bar.
func TestBacktestGridTradesRoundTrips(t *testing.T) {
	closes := []string{"140", "150", "120", "160", "120", "160", "120", "160"}
	b := runBacktestBot(t, backtestConfig(), syntheticCandles(closes))

	completed := b.book.CompletedOrders()
	assert.NotEmpty(t, completed)

	var buys, sells int
	for _, o := range completed {
		switch o.Side {
		case models.Buy:
			buys++
		case models.Sell:
			sells++
		}
	}
	assert.Greater(t, buys, 0)
	assert.Greater(t, sells, 0)

	assert.Len(t, b.series, len(closes))
}

// TestBacktestStopLossEndsSession verifies that a stop-loss bar liquidates
// the position and stops the replay early.
func TestBacktestStopLossEndsSession(t *testing.T) {
	cfg := backtestConfig()
	cfg.StopLossEnabled = true
	cfg.StopLossThreshold = decimal.RequireFromString("105")

	closes := []string{"140", "150", "100", "160", "160", "160"}
	b := runBacktestBot(t, backtestConfig(), syntheticCandles(closes))
	full := len(b.series)

	stopped := runBacktestBot(t, cfg, syntheticCandles(closes))
	assert.Less(t, len(stopped.series), full)

	var marketSells int
	for _, o := range stopped.book.AllOrders() {
		if o.Side == models.Sell && o.Type == models.Market {
			marketSells++
		}
	}
	assert.Equal(t, 1, marketSells)
}

// TestBacktestTakeProfitEndsSession mirrors the stop-loss case on the upside.
func TestBacktestTakeProfitEndsSession(t *testing.T) {
	cfg := backtestConfig()
	cfg.TakeProfitEnabled = true
	cfg.TakeProfitThreshold = decimal.RequireFromString("185")

	closes := []string{"140", "150", "190", "150", "150"}
	stopped := runBacktestBot(t, cfg, syntheticCandles(closes))
	assert.Less(t, len(stopped.series), len(closes))
}

func TestGeneratePerformanceReportRenders(t *testing.T) {
	closes := []string{"140", "150", "120", "160", "120", "160"}
	b := runBacktestBot(t, backtestConfig(), syntheticCandles(closes))

	summary, orders := b.GeneratePerformanceReport()
	assert.Contains(t, summary, "ETH/USDT")
	assert.NotEmpty(t, orders)
}
