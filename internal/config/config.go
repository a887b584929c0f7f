package config

import (
	"encoding/json"
	"fmt"
	"os"

	"grid-trading-bot-go/internal/models"

	"github.com/shopspring/decimal"
)

// LoadConfig reads and validates the JSON config file at the given path.
func LoadConfig(path string) (*models.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	cfg := &models.Config{}
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *models.Config) {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayMs == 0 {
		cfg.RetryDelayMs = 1000
	}
	if cfg.MaxSlippage.IsZero() {
		cfg.MaxSlippage = decimal.RequireFromString("0.01")
	}
	if cfg.TickerIntervalSec == 0 {
		cfg.TickerIntervalSec = 3
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = "1m"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
}

// Validate checks the configuration shape. All failures here are fatal at
// construction time; nothing downstream re-validates these fields.
func Validate(cfg *models.Config) error {
	if cfg.BaseCurrency == "" || cfg.QuoteCurrency == "" {
		return fmt.Errorf("base_currency and quote_currency must be set")
	}

	switch cfg.StrategyType {
	case models.SimpleGrid, models.HedgedGrid:
	default:
		return fmt.Errorf("unsupported strategy type: %q", cfg.StrategyType)
	}

	switch cfg.SpacingType {
	case models.SpacingArithmetic, models.SpacingGeometric:
	default:
		return fmt.Errorf("unsupported spacing type: %q", cfg.SpacingType)
	}

	if cfg.NumGrids < 2 {
		return fmt.Errorf("num_grids must be at least 2, got %d", cfg.NumGrids)
	}
	if !cfg.BottomRange.IsPositive() {
		return fmt.Errorf("bottom_range must be positive, got %s", cfg.BottomRange)
	}
	if cfg.TopRange.LessThanOrEqual(cfg.BottomRange) {
		return fmt.Errorf("top_range (%s) must exceed bottom_range (%s)", cfg.TopRange, cfg.BottomRange)
	}
	if cfg.TradingFeeRate.IsNegative() {
		return fmt.Errorf("trading_fee_rate must not be negative, got %s", cfg.TradingFeeRate)
	}
	if cfg.InitialBalance.IsNegative() || cfg.InitialCryptoBalance.IsNegative() {
		return fmt.Errorf("initial balances must not be negative")
	}
	return nil
}
