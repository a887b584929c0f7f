package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TradingMode selects how the bot is executed.
type TradingMode string

const (
	ModeBacktest TradingMode = "backtest"
	ModePaper    TradingMode = "paper_trading"
	ModeLive     TradingMode = "live"
)

// TradingModeFromString parses a trading mode string from CLI/config.
func TradingModeFromString(s string) (TradingMode, error) {
	switch TradingMode(strings.ToLower(s)) {
	case ModeBacktest:
		return ModeBacktest, nil
	case ModePaper:
		return ModePaper, nil
	case ModeLive:
		return ModeLive, nil
	default:
		return "", fmt.Errorf("invalid trading mode: %q (available: backtest, paper_trading, live)", s)
	}
}

// StrategyType selects the grid pairing policy, fixed for the whole session.
type StrategyType string

const (
	SimpleGrid StrategyType = "simple_grid"
	HedgedGrid StrategyType = "hedged_grid"
)

// SpacingType selects how grid prices are distributed over the range.
type SpacingType string

const (
	SpacingArithmetic SpacingType = "arithmetic"
	SpacingGeometric  SpacingType = "geometric"
)

// Config holds all bot configuration. It is decoded from a JSON file once at
// startup; API credentials come from the environment, not from this file.
type Config struct {
	BaseCurrency  string `json:"base_currency"`  // e.g. "BTC"
	QuoteCurrency string `json:"quote_currency"` // e.g. "USDT"

	StrategyType StrategyType    `json:"strategy_type"` // "simple_grid" or "hedged_grid"
	SpacingType  SpacingType     `json:"spacing_type"`  // "arithmetic" or "geometric"
	NumGrids     int             `json:"num_grids"`
	BottomRange  decimal.Decimal `json:"bottom_range"`
	TopRange     decimal.Decimal `json:"top_range"`

	Timeframe string `json:"timeframe"`  // kline interval for backtests, e.g. "1m"
	StartDate string `json:"start_date"` // backtest period start (YYYY-MM-DD)
	EndDate   string `json:"end_date"`   // backtest period end (YYYY-MM-DD)

	InitialBalance       decimal.Decimal `json:"initial_balance"`        // starting fiat for backtest/paper
	InitialCryptoBalance decimal.Decimal `json:"initial_crypto_balance"` // starting crypto for backtest/paper
	TradingFeeRate       decimal.Decimal `json:"trading_fee_rate"`       // e.g. 0.001 for 0.1%

	TakeProfitEnabled   bool            `json:"take_profit_enabled"`
	TakeProfitThreshold decimal.Decimal `json:"take_profit_threshold"`
	StopLossEnabled     bool            `json:"stop_loss_enabled"`
	StopLossThreshold   decimal.Decimal `json:"stop_loss_threshold"`

	MaxRetries        int             `json:"max_retries"`         // market order retry attempts
	RetryDelayMs      int             `json:"retry_delay_ms"`      // fixed delay between attempts
	MaxSlippage       decimal.Decimal `json:"max_slippage"`        // total price allowance spread over retries
	TickerIntervalSec int             `json:"ticker_interval_sec"` // live/paper price poll interval

	DBPath  string `json:"db_path"`  // BadgerDB directory for session snapshots
	DataDir string `json:"data_dir"` // cache directory for downloaded kline CSVs

	LogConfig LogConfig `json:"log"`
}

// LogConfig configures the zap/lumberjack logging setup.
type LogConfig struct {
	Level      string `json:"level"`       // "debug", "info", "warn", "error"
	Output     string `json:"output"`      // "console", "file", "both"
	File       string `json:"file"`        // log file path
	MaxSize    int    `json:"max_size"`    // max size of a single log file (MB)
	MaxBackups int    `json:"max_backups"` // number of rotated files to keep
	MaxAge     int    `json:"max_age"`     // max age of rotated files (days)
	Compress   bool   `json:"compress"`    // gzip rotated files
}

// Pair returns the exchange symbol for the configured currency pair.
func (c *Config) Pair() string {
	return c.BaseCurrency + c.QuoteCurrency
}
